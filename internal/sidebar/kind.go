package sidebar

// Kind is a rustdoc item kind, the category key of a sidebar table.
type Kind string

const (
	KindMod         Kind = "mod"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindUnion       Kind = "union"
	KindTrait       Kind = "trait"
	KindTraitAlias  Kind = "traitalias"
	KindFn          Kind = "fn"
	KindMacro       Kind = "macro"
	KindAttr        Kind = "attr"
	KindDerive      Kind = "derive"
	KindType        Kind = "type"
	KindForeignType Kind = "foreigntype"
	KindConstant    Kind = "constant"
	KindStatic      Kind = "static"
	KindPrimitive   Kind = "primitive"
	KindKeyword     Kind = "keyword"
)

// kindOrder is the order rustdoc lists sections in a module sidebar.
var kindOrder = []Kind{
	KindPrimitive,
	KindMod,
	KindMacro,
	KindStruct,
	KindEnum,
	KindUnion,
	KindConstant,
	KindStatic,
	KindTrait,
	KindTraitAlias,
	KindFn,
	KindType,
	KindForeignType,
	KindKeyword,
	KindAttr,
	KindDerive,
}

var kindTitles = map[Kind]string{
	KindMod:         "Modules",
	KindStruct:      "Structs",
	KindEnum:        "Enums",
	KindUnion:       "Unions",
	KindTrait:       "Traits",
	KindTraitAlias:  "Trait Aliases",
	KindFn:          "Functions",
	KindMacro:       "Macros",
	KindAttr:        "Attribute Macros",
	KindDerive:      "Derive Macros",
	KindType:        "Type Aliases",
	KindForeignType: "Foreign Types",
	KindConstant:    "Constants",
	KindStatic:      "Statics",
	KindPrimitive:   "Primitive Types",
	KindKeyword:     "Keywords",
}

// KnownKinds returns every kind rustdoc emits, in sidebar order.
func KnownKinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// Known reports whether k is a kind rustdoc emits.
func (k Kind) Known() bool {
	_, ok := kindTitles[k]
	return ok
}

// Title returns the sidebar section heading for k.
func (k Kind) Title() string {
	if t, ok := kindTitles[k]; ok {
		return t
	}
	return string(k)
}

// Href returns the rustdoc file an entry of this kind links to, relative to
// the page's module directory.
func (k Kind) Href(name string) string {
	if k == KindMod {
		return name + "/index.html"
	}
	return string(k) + "." + name + ".html"
}
