package l0

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) *Value {
	t.Helper()
	a := NewArena(0)
	forms, err := Parse(a, src)
	require.NoError(t, err)
	items, ok := ListToSlice(forms)
	require.True(t, ok)
	require.Len(t, items, 1)
	return items[0]
}

func TestParse_EmptyInputYieldsEmptyList(t *testing.T) {
	a := NewArena(0)
	forms, err := Parse(a, "   ; just a comment\n")
	require.NoError(t, err)
	assert.True(t, forms.IsNil())
}

func TestParse_Atoms(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"42", "42"},
		{"-7", "-7"},
		{"3.14", "3.14"},
		{"#t", "#t"},
		{"#f", "#f"},
		{`"hello\nworld"`, `"hello\nworld"`},
		{"foo-bar?", "foo-bar?"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, parseOne(t, tt.src).String())
		})
	}
}

func TestParse_ListsAndNesting(t *testing.T) {
	v := parseOne(t, "(+ 1 (* 2 3))")
	assert.Equal(t, "(+ 1 (* 2 3))", v.String())
}

func TestParse_ReaderMacrosDesugar(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"'x", "(quote x)"},
		{"`x", "(quasiquote x)"},
		{",x", "(unquote x)"},
		{",@x", "(unquote-splicing x)"},
		{"`(a ,b ,@c)", "(quasiquote (a (unquote b) (unquote-splicing c)))"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, parseOne(t, tt.src).String())
		})
	}
}

func TestParse_DottedSyntaxIsNotRecognized(t *testing.T) {
	// `.` stays an ordinary symbol character, so "(a . b)" reads as the
	// three-element list (a . b), not a cons cell literal.
	v := parseOne(t, "(a . b)")
	assert.Equal(t, "(a . b)", v.String())
	items, ok := ListToSlice(v)
	require.True(t, ok)
	assert.Len(t, items, 3)
}

func TestParse_MultipleTopLevelForms(t *testing.T) {
	a := NewArena(0)
	forms, err := Parse(a, "1 2 3")
	require.NoError(t, err)
	items, ok := ListToSlice(forms)
	require.True(t, ok)
	require.Len(t, items, 3)
	assert.Equal(t, "1", items[0].String())
	assert.Equal(t, "3", items[2].String())
}

func TestParse_UnterminatedStringReportsPosition(t *testing.T) {
	a := NewArena(0)
	_, err := Parse(a, `"unterminated`)
	require.Error(t, err)
	d, ok := AsDiagnostic(err)
	require.True(t, ok)
	assert.Equal(t, PhaseParse, d.Phase)
	assert.GreaterOrEqual(t, d.Line, 1)
	assert.GreaterOrEqual(t, d.Column, 1)
}

func TestParse_UnmatchedCloseParenIsInvalidSyntax(t *testing.T) {
	a := NewArena(0)
	_, err := Parse(a, ")")
	require.Error(t, err)
	d, ok := AsDiagnostic(err)
	require.True(t, ok)
	assert.Equal(t, KindParseInvalidSyntax, d.Kind)
}

func TestParse_UnclosedListReportsUnexpectedEOF(t *testing.T) {
	a := NewArena(0)
	_, err := Parse(a, "(a b")
	require.Error(t, err)
	d, ok := AsDiagnostic(err)
	require.True(t, ok)
	assert.Equal(t, KindParseUnexpectedEOF, d.Kind)
}
