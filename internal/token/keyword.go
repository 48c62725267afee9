package token

// KeywordFlag marks behavioral properties of a reserved Keyword.
type KeywordFlag uint8

const (
	// Evaluable keywords resolve directly to a Value: true, false, yes,
	// no, self, nil.
	Evaluable KeywordFlag = 1 << iota
	// BooleanValued keywords are the four truth keywords plus nil (which
	// is falsy).
	BooleanValued
	// VariableDeclaration marks var/let.
	VariableDeclaration
)

// KeywordDef describes one reserved identifier.
type KeywordDef struct {
	Name string
	Flags KeywordFlag
}

func (k KeywordDef) Has(f KeywordFlag) bool { return k.Flags&f != 0 }

// Keywords is the fixed reserved-identifier set.
var Keywords = map[string]KeywordDef{
	"in": {"in", 0},
	"true": {"true", Evaluable | BooleanValued},
	"false": {"false", Evaluable | BooleanValued},
	"self": {"self", Evaluable},
	"nil": {"nil", Evaluable | BooleanValued},
	"yes": {"yes", Evaluable | BooleanValued},
	"no": {"no", Evaluable | BooleanValued},
	"_": {"_", 0},
	"template": {"template", 0},
	"var": {"var", VariableDeclaration},
	"let": {"let", VariableDeclaration},
}

// LookupKeyword reports whether name is a reserved Keyword.
func LookupKeyword(name string) (KeywordDef, bool) {
	kw, ok := Keywords[name]
	return kw, ok
}
