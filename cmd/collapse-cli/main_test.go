package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/block-physics/internal/auth"
	"github.com/annel0/block-physics/internal/collapse"
	"github.com/annel0/block-physics/internal/storage"
)

func newMemoryStore(t *testing.T) optionStore {
	t.Helper()
	bs, err := storage.OpenBadgerSource("")
	require.NoError(t, err)
	s := badgerStore{bs}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestParseValue(t *testing.T) {
	v, err := parseValue("5")
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = parseValue("[minecraft:glass, minecraft:sand]")
	require.NoError(t, err)
	assert.Equal(t, []any{"minecraft:glass", "minecraft:sand"}, v)

	_, err = parseValue("[unclosed")
	assert.Error(t, err)
}

func TestSetOptionStoresValidValues(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	var out bytes.Buffer

	require.NoError(t, setOption(ctx, &out, s, "", collapse.KeyDmgMax, "20"))
	require.NoError(t, setOption(ctx, &out, s, "", collapse.KeyOverwriteBlocks, "[minecraft:glass]"))

	out.Reset()
	require.NoError(t, getOption(ctx, &out, s, collapse.KeyDmgMax))
	assert.Equal(t, "dmgMax = 20\n", out.String())

	out.Reset()
	require.NoError(t, getOption(ctx, &out, s, collapse.KeyOverwriteBlocks))
	assert.Equal(t, "overwriteBlocks = [\"minecraft:glass\"]\n", out.String())
}

func TestSetOptionRejectsCorrections(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	var out bytes.Buffer

	err := setOption(ctx, &out, s, "", collapse.KeyFallingBlockBreakFactor, "2")
	assert.Error(t, err)
	assert.Contains(t, out.String(), collapse.KeyFallingBlockBreakFactor)

	err = setOption(ctx, &out, s, "", collapse.KeyOverwriteBlocks, "[minecraft:ghost]")
	assert.Error(t, err)

	err = setOption(ctx, &out, s, "", "noSuchOption", "1")
	assert.Error(t, err)

	_, err = s.Get(ctx, collapse.KeyFallingBlockBreakFactor)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestImportAndShow(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "collapse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"dmgMax: 15",
		"allowedDimensions: [minecraft:overworld, custom:void, nether]",
	}, "\n")), 0o644))

	s := newMemoryStore(t)
	require.NoError(t, importFile(ctx, s, path))

	v, err := s.Get(ctx, collapse.KeyDmgMax)
	require.NoError(t, err)
	assert.Equal(t, json.Number("15"), v)

	var out bytes.Buffer
	require.NoError(t, showSnapshot(ctx, &out, storeTarget{File: path}, ""))
	assert.Contains(t, out.String(), `"dmg_max": 15`)
	assert.Contains(t, out.String(), "allowedDimensions[2]=nether")
	assert.Contains(t, out.String(), "dimension custom:void is not in the registry")
}

func TestIssueToken(t *testing.T) {
	secret, err := auth.GenerateSecureSecret()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, issueToken(&out, secret, "ops", true, time.Hour))

	issuer, err := auth.NewTokenIssuer(secret)
	require.NoError(t, err)
	claims, err := issuer.Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)

	assert.Error(t, issueToken(&out, "", "ops", true, time.Hour))
}

func TestStoreTargetRequiresBackend(t *testing.T) {
	_, err := storeTarget{File: "x.yaml"}.open()
	assert.Error(t, err)
}
