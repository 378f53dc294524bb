package token

// Kind classifies a token from the lexer.
type Kind int

const (
	IDENTIFIER Kind = iota
	INTEGER
	DECIMAL
	CHARACTER
	STRING
	OPERATOR
)

func (k Kind) String() string {
	data := map[Kind]string{
		IDENTIFIER: "IDENTIFIER",
		INTEGER:    "INTEGER",
		DECIMAL:    "DECIMAL",
		CHARACTER:  "CHARACTER",
		STRING:     "STRING",
		OPERATOR:   "OPERATOR",
	}
	return data[k]
}

// Token is one element of the lexer's output. Literal holds the raw token
// text: characters and strings keep their surrounding quotes and unexpanded
// escape sequences until the parser builds the literal node. Index is the
// byte offset of the token in the original source.
type Token struct {
	Kind    Kind
	Literal string
	Index   int
}
