package vmstate

// HeapObject is a heap-resident record: a type hint (a class name, or
// the reserved hints "list"/"dict") and a mapping from field-or-index
// key to value. Heap objects are created by NEW_OBJECT, NEW_ARRAY, class
// constructor dispatch, or lazy materialization on field/index access;
// they are never destroyed during a run (spec.md §3 Lifecycles).
type HeapObject struct {
	TypeHint string
	Fields   map[string]Value
}

// NewHeapObject returns an empty heap object with the given type hint.
func NewHeapObject(typeHint string) *HeapObject {
	return &HeapObject{TypeHint: typeHint, Fields: make(map[string]Value)}
}
