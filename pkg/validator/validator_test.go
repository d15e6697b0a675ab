package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

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

const validYAML = `
name: single checkbox
url: https://example.com/checkbox-demo
tags: [smoke]
target:
  id: isAgeSelected
expect:
  selected: true
---
name: table row
url: https://example.com/table
target:
  relative:
    anchor: Green
    relation: leftOf
    tag: div
also:
  - xpath: //span[contains(text(), 'Green')]/parent::td
---
name: tree
url: https://example.com/tree
tags: [slow]
target:
  hierarchy:
    sections: [Folder 1, Folder 2]
    leaf: Folder 2
`

func TestValidate_SingleFile(t *testing.T) {
	file := writeFile(t, t.TempDir(), "checkboxes.yaml", validYAML)

	result := New(nil, nil).Validate(file)
	require.True(t, result.IsValid(), "errors: %v", result.Errors)
	assert.Equal(t, []string{file}, result.Files)
	assert.Len(t, result.Scenarios, 3)
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: a\nurl: https://example.com\ntarget:\n  id: a\n")
	writeFile(t, dir, "nested/b.yml", "name: b\nurl: https://example.com\ntarget:\n  css: input[type=checkbox]\n")
	writeFile(t, dir, "config.yaml", "scenarios: [.]\n")
	writeFile(t, dir, "notes.txt", "ignored")

	result := New(nil, nil).Validate(dir)
	require.True(t, result.IsValid(), "errors: %v", result.Errors)
	assert.Len(t, result.Files, 2)
	assert.Len(t, result.Scenarios, 2)
}

func TestValidate_TagFilters(t *testing.T) {
	file := writeFile(t, t.TempDir(), "checkboxes.yaml", validYAML)

	result := New([]string{"smoke"}, nil).Validate(file)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "single checkbox", result.Scenarios[0].Name)

	result = New(nil, []string{"slow"}).Validate(file)
	assert.Len(t, result.Scenarios, 2)
}

func TestValidate_MissingPath(t *testing.T) {
	result := New(nil, nil).Validate(filepath.Join(t.TempDir(), "missing.yaml"))
	require.False(t, result.IsValid())
	assert.Contains(t, result.Errors[0].Error(), "cannot access")
}

func TestValidate_EmptyDirectory(t *testing.T) {
	result := New(nil, nil).Validate(t.TempDir())
	require.False(t, result.IsValid())
	assert.Contains(t, result.Errors[0].Error(), "no scenario files found")
}

func TestValidate_ParseErrorDoesNotStopOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "name: bad\ntarget:\n  relative:\n    anchor: x\n    relation: diagonal\n")
	writeFile(t, dir, "good.yaml", "name: good\nurl: https://example.com\ntarget:\n  id: ok\n")

	result := New(nil, nil).Validate(dir)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "bad.yaml")
	assert.Contains(t, result.Errors[0].Error(), "parse error")
	assert.Len(t, result.Scenarios, 1)
}

func TestValidate_SemanticErrors(t *testing.T) {
	content := `
name: no url
target:
  id: x
---
name: bad xpath
url: https://example.com
target:
  xpath: //div[
---
name: bad css
url: https://example.com
target:
  css: "input[["
---
name: empty hierarchy
url: https://example.com
target:
  hierarchy:
    sections: []
    leaf: ""
---
name: reclick without bulk
url: https://example.com
target:
  id: x
interaction: click
reclickIndex: 1
---
name: no url
url: https://example.com
target:
  id: y
`
	file := writeFile(t, t.TempDir(), "bad.yaml", content)
	result := New(nil, nil).Validate(file)
	require.False(t, result.IsValid())

	var all []string
	for _, err := range result.Errors {
		all = append(all, err.Error())
	}
	joined := strings.Join(all, "\n")
	assert.Contains(t, joined, "url is required")
	assert.Contains(t, joined, "invalid xpath")
	assert.Contains(t, joined, "invalid css")
	assert.Contains(t, joined, "hierarchy needs at least one section")
	assert.Contains(t, joined, "hierarchy leaf is required")
	assert.Contains(t, joined, "only apply to clickAll")
	assert.Contains(t, joined, "duplicate scenario name")
}

func TestValidate_ExpressionsSkipCompile(t *testing.T) {
	file := writeFile(t, t.TempDir(), "env.yaml", "name: env\nurl: ${BASE}\ntarget:\n  xpath: ${LOCATOR}\n")
	result := New(nil, nil).Validate(file)
	assert.True(t, result.IsValid(), "errors: %v", result.Errors)
}

func TestValidationError_Format(t *testing.T) {
	err := &ValidationError{File: "a.yaml", Line: 3, Scenario: "x", Message: "boom"}
	assert.Equal(t, "a.yaml:3 (x): boom", err.Error())
	err = &ValidationError{File: "a.yaml", Message: "boom"}
	assert.Equal(t, "a.yaml: boom", err.Error())
}
