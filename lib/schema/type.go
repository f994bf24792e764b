package schema

// Type is a tag drawn from an extensible base-type/semantic-type
// taxonomy. Subtype relations are registered with RegisterIsA; the
// built-in relations spec.md §3 calls out (UNIXTimestampMilliseconds
// and UNIXTimestampSeconds ⊏ DateTime; Time ⊏ DateTime; PK/FK ⊏
// Identifier) are registered in init.
type Type string

const (
	TypeDateTime                   Type = "type/DateTime"
	TypeTime                       Type = "type/Time"
	TypeUNIXTimestampSeconds       Type = "type/UNIXTimestampSeconds"
	TypeUNIXTimestampMilliseconds  Type = "type/UNIXTimestampMilliseconds"
	TypeIdentifier                 Type = "type/Identifier"
	TypePK                         Type = "type/PK"
	TypeFK                         Type = "type/FK"
	TypeInteger                    Type = "type/Integer"
	TypeFloat                      Type = "type/Float"
	TypeText                       Type = "type/Text"
	TypeBoolean                    Type = "type/Boolean"
)

var isaTable = map[Type][]Type{}

// RegisterIsA declares that t is a subtype of parent. Safe to call
// from multiple packages; relations accumulate.
func RegisterIsA(t, parent Type) {
	isaTable[t] = append(isaTable[t], parent)
}

func init() {
	RegisterIsA(TypeTime, TypeDateTime)
	RegisterIsA(TypeUNIXTimestampSeconds, TypeDateTime)
	RegisterIsA(TypeUNIXTimestampMilliseconds, TypeDateTime)
	RegisterIsA(TypePK, TypeIdentifier)
	RegisterIsA(TypeFK, TypeIdentifier)
}

// IsA reports whether t is ancestor, or a registered (possibly
// transitive) subtype of it.
func (t Type) IsA(ancestor Type) bool {
	if t == ancestor {
		return true
	}
	for _, parent := range isaTable[t] {
		if parent.IsA(ancestor) {
			return true
		}
	}
	return false
}

// Bucketable reports whether a field of this base type may be
// datetime-bucketed. Time is DateTime but explicitly excluded
// (spec.md §3: "Time ⊏ DateTime but not bucketable").
func (t Type) Bucketable() bool {
	return t.IsA(TypeDateTime) && !t.IsA(TypeTime)
}
