package parser

import (
	"os"
	"path/filepath"
	"testing"

	"classgen/internal/diag"
	"classgen/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const buttonUnit = `
path: src/ui/Button.as
package: ui
imports: [ui.Base]
directives:
  - kind: class
    name: Button
    super: ui.Base
    metadata:
      - name: SkinPart
        args: [{key: required, value: "true"}]
    body:
      - kind: variable
        name: label
        type: {name: String}
        value: {kind: string, value: hi}
      - kind: variable
        name: count
        namespace: {kind: private, uri: ui.Button}
        type: {name: int}
        value: {kind: int, value: 3}
      - kind: function
        name: click
        params: [{name: times, type: {name: int}}]
        defaults: [{kind: int, value: 1}]
        body:
          - code: "this.dispatch();"
            references: [ui.Base]
`

func TestParseFile_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Button.yaml", buttonUnit)

	units, err := New().ParseFile(path)
	require.NoError(t, err)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, "src/ui/Button.as", u.Path)
	assert.Equal(t, "ui", u.Package)
	assert.Equal(t, []string{"ui.Base"}, u.Imports)

	require.Len(t, u.Directives, 1)
	class := u.Directives[0]
	assert.Equal(t, model.NodeClass, class.Kind)
	assert.Equal(t, "ui.Base", class.Super)
	require.Len(t, class.Body, 3)

	count := class.Body[1]
	require.NotNil(t, count.Namespace)
	assert.Equal(t, model.Private("ui.Button"), *count.Namespace)
	lit, err := count.Value.Literal()
	require.NoError(t, err)
	assert.Equal(t, "3", lit)

	click := class.Body[2]
	want := []*model.Node{{Code: "this.dispatch();", References: []string{"ui.Base"}}}
	if diff := cmp.Diff(want, click.Body); diff != "" {
		t.Errorf("click body mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Check(u))
}

func TestParseFile_MultiDocumentPaths(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "units.yml", `
package: a
directives: [{kind: class, name: A}]
---
path: named.as
package: b
directives: [{kind: class, name: B}]
---
package: c
`)

	units, err := New().ParseFile(path)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, path+"#0", units[0].Path)
	assert.Equal(t, "named.as", units[1].Path)
	assert.Equal(t, path+"#2", units[2].Path)
}

func TestParseFile_JSON(t *testing.T) {
	dir := t.TempDir()

	single := writeFile(t, dir, "one.json", `{"package": "pkg", "directives": [
		{"kind": "variable", "name": "LIMIT", "modifiers": ["static", "const"], "value": {"kind": "double", "value": 2.5}}
	]}`)
	units, err := New().ParseFile(single)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, single, units[0].Path)
	lit, err := units[0].Directives[0].Value.Literal()
	require.NoError(t, err)
	assert.Equal(t, "2.5", lit)

	many := writeFile(t, dir, "many.json", `[{"path": "a.as"}, {"path": "b.as", "package": "p"}]`)
	units, err = New().ParseFile(many)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "b.as", units[1].Path)
}

func TestParseFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		_, err := New().ParseFile(filepath.Join(dir, "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading")
	})

	t.Run("UnknownField", func(t *testing.T) {
		path := writeFile(t, dir, "unknown.yaml", "path: a.as\ncolour: red\n")
		_, err := New().ParseFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing "+path)

		units, err := New(WithStrict(false)).ParseFile(path)
		require.NoError(t, err)
		assert.Equal(t, "a.as", units[0].Path)
	})

	t.Run("UnknownNamespaceKind", func(t *testing.T) {
		path := writeFile(t, dir, "ns.json", `{"directives": [{"kind": "variable", "name": "x", "namespace": {"kind": "friend"}}]}`)
		_, err := New().ParseFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "friend")
	})
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b/Second.yaml", "path: second.as\n")
	writeFile(t, dir, "a/First.json", `{"path": "first.as"}`)
	writeFile(t, dir, "README.md", "not a unit")

	units, err := New().ParseDir(dir)
	require.NoError(t, err)

	var paths []string
	for _, u := range units {
		paths = append(paths, u.Path)
	}
	assert.Equal(t, []string{"first.as", "second.as"}, paths)

	file := writeFile(t, t.TempDir(), "Third.yaml", "path: third.as\n")
	units, err = New().ParsePaths([]string{file, dir})
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "third.as", units[0].Path)
}

func TestIsUnitFile(t *testing.T) {
	assert.True(t, IsUnitFile("a/b.YAML"))
	assert.True(t, IsUnitFile("b.yml"))
	assert.True(t, IsUnitFile("b.json"))
	assert.False(t, IsUnitFile("b.as"))
}

func TestCheck(t *testing.T) {
	bad := model.Namespace{Kind: model.NamespaceKind(42)}
	u := &model.Unit{Path: "bad.as", Directives: []*model.Node{
		{Kind: "enum", Name: "E"},
		{Kind: model.NodeClass, Name: "A", Body: []*model.Node{
			{Kind: model.NodeClass, Name: "Inner"},
			{Kind: model.NodeVariable, Modifiers: []model.Modifier{"volatile"}},
			{Kind: model.NodeVariable, Name: "n", Value: &model.Constant{Kind: model.ConstInt, Value: "x"}},
			{Kind: model.NodeFunction, Name: "f", Namespace: &bad, Rest: true},
			{Kind: model.NodeFunction, Name: "g", Params: []model.Param{{Name: "a"}},
				Defaults: []*model.Constant{model.IntConst(1), model.IntConst(2)},
				Body:     []*model.Node{{Kind: model.NodeVariable, Name: "local"}}},
		}},
	}}

	problems := Check(u)
	var messages []string
	for _, p := range problems {
		assert.Equal(t, diag.KindInvalidInput, p.Kind)
		assert.Equal(t, diag.SeverityError, p.Severity)
		assert.Equal(t, "bad.as", p.Unit)
		messages = append(messages, p.Message)
	}
	assert.Equal(t, []string{
		`unknown directive kind "enum"`,
		"nested class definitions are not supported",
		"variable directive without a name",
		`unknown modifier "volatile"`,
		"invalid constant: [INTERNAL_ERROR] bad int constant: strconv.ParseInt: parsing \"x\": invalid syntax",
		"unknown namespace kind 42",
		"rest flag without parameters",
		`unexpected "variable" directive in a function body`,
		"2 defaults for 1 parameters",
	}, messages)
}

func TestCheck_RestWithoutParams(t *testing.T) {
	u := &model.Unit{Path: "rest.as", Directives: []*model.Node{
		{Kind: model.NodeFunction, Name: "f", Rest: true},
		{Kind: model.NodeFunction, Name: "g", Rest: true, Params: []model.Param{{Name: "args"}}},
		{Kind: model.NodeFunction, Name: "h", Rest: true, Params: []model.Param{{Name: "a"}, {Name: "args"}},
			Defaults: []*model.Constant{model.IntConst(1)}},
	}}

	problems := Check(u)
	require.Len(t, problems, 1)
	assert.Equal(t, "f", problems[0].Member)
	assert.Equal(t, "rest flag without parameters", problems[0].Message)
}
