package jsonpatch

import (
	"strconv"

	"github.com/cdogma/dogma-core/dogma"
	"github.com/cdogma/dogma-core/dogmaerr"
)

// Apply executes patch against doc in order A
// failure aborts the whole patch and returns a dogmaerr.JsonPatchError
// naming the offending operation, except a failed test operation or
// safeReplace precondition, which surfaces dogmaerr.TestFailed.
func Apply(doc any, patch []dogma.PatchOp) (any, error) {
	cur := doc
	for i, op := range patch {
		next, err := applyOne(cur, op)
		if err != nil {
			if dogmaerr.Is(err, dogmaerr.TestFailed) {
				return nil, err
			}
			return nil, dogmaerr.Wrap(dogmaerr.JsonPatchError, opDescription(i, op), err)
		}
		cur = next
	}
	return cur, nil
}

func opDescription(i int, op dogma.PatchOp) string {
	return string(op.Op) + " " + op.Path + " (op #" + strconv.Itoa(i) + ")"
}

func applyOne(doc any, op dogma.PatchOp) (any, error) {
	switch op.Op {
	case dogma.PatchOpAdd:
		return pointerAdd(doc, op.Path, op.Value)
	case dogma.PatchOpRemove:
		return pointerRemove(doc, op.Path, true)
	case dogma.PatchOpRemoveIfExists:
		return pointerRemove(doc, op.Path, false)
	case dogma.PatchOpReplace:
		return pointerReplace(doc, op.Path, op.Value)
	case dogma.PatchOpSafeReplace:
		return applySafeReplace(doc, op)
	case dogma.PatchOpTest:
		return applyTest(doc, op)
	case dogma.PatchOpMove:
		return applyMove(doc, op)
	case dogma.PatchOpCopy:
		return applyCopy(doc, op)
	default:
		return nil, dogmaerr.Newf(dogmaerr.JsonPatchError, "unknown operation %q", op.Op)
	}
}

func applySafeReplace(doc any, op dogma.PatchOp) (any, error) {
	current, err := pointerGet(doc, op.Path)
	if err != nil {
		current = nil
	}
	if !Equivalent(current, op.OldValue) {
		return nil, dogmaerr.Newf(dogmaerr.TestFailed, "safeReplace mismatch at %s", op.Path)
	}
	return pointerAdd(doc, op.Path, op.Value)
}

func applyTest(doc any, op dogma.PatchOp) (any, error) {
	current, err := pointerGet(doc, op.Path)
	if err != nil {
		return nil, err
	}
	if !Equivalent(current, op.Value) {
		return nil, dogmaerr.Newf(dogmaerr.TestFailed, "test failed at %s", op.Path)
	}
	return doc, nil
}

func applyMove(doc any, op dogma.PatchOp) (any, error) {
	val, err := pointerGet(doc, op.From)
	if err != nil {
		return nil, err
	}
	doc, err = pointerRemove(doc, op.From, true)
	if err != nil {
		return nil, err
	}
	return pointerAdd(doc, op.Path, val)
}

func applyCopy(doc any, op dogma.PatchOp) (any, error) {
	val, err := pointerGet(doc, op.From)
	if err != nil {
		return nil, err
	}
	return pointerAdd(doc, op.Path, deepCopy(val))
}
