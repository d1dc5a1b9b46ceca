package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitIDsAreDeterministic(t *testing.T) {
	a := SymbolUnitID("repo-1", "src/auth/login.ts", "validateToken")
	b := SymbolUnitID("repo-1", "src/auth/login.ts", "validateToken")
	assert.Equal(t, a, b)
	assert.Equal(t, "repo-1-src_auth_login.ts-validateToken", a)
}

func TestFileUnitIDFlattensPath(t *testing.T) {
	assert.Equal(t, "repo-1-a_b_c.go", FileUnitID("repo-1", "a/b/c.go"))
}

func TestUnitIDsDistinguishSymbols(t *testing.T) {
	a := SymbolUnitID("repo-1", "main.go", "run")
	b := SymbolUnitID("repo-1", "main.go", "main")
	assert.NotEqual(t, a, b)
}
