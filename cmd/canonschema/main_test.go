package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/schema"
)

const ledgerYAML = `
namespace: ledger
types:
  - name: Entry
    fields:
      - {name: id, type: uint64}
      - {name: memo, type: "*string"}
      - {name: next, type: "*Entry"}
  - name: Op
    shape: sum
    discriminant: explicit
    variants:
      - {name: Nop}
      - {name: Push, discriminant: "10", shape: tuple, fields: [{type: uint64}]}
      - {name: Pop}
  - name: Pair
    params: [K, V]
    fields:
      - {name: key, type: K}
      - {name: value, type: V}
      - {name: cache, type: "[]V", skip: true}
`

func writeDefinitions(t *testing.T, doc string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(ledgerYAML), &stdout, &stderr)

	return stdout.String(), stderr.String(), err
}

func TestRun_Text(t *testing.T) {
	path := writeDefinitions(t, ledgerYAML)

	out, _, err := runCLI(t, path)
	require.NoError(t, err)

	require.Contains(t, out, "type Op (sum)\n  Nop = 0\n  Push = 10\n  Pop = 11\n")
	require.Contains(t, out, "type Pair[K, V] (record)\n  bounds K: encode+decode+schema, V: encode+decode+default+schema\n")
	require.Contains(t, out, "root ledger.Entry, ledger.Op\n")
	require.Contains(t, out, "ledger.Entry = struct{id: uint64, memo: *string, next: *ledger.Entry}\n")
	require.Contains(t, out, "ledger.Op = enum{Nop=0, Push=10{0: uint64}, Pop=11}\n")
	require.NotContains(t, out, "ledger.Pair")
}

func TestRun_GenericRoot(t *testing.T) {
	out, _, err := runCLI(t, "--plans=false", "-t", "Pair[uint32, string]", "-")
	require.NoError(t, err)
	require.NotContains(t, out, "type Op")
	require.Contains(t, out, "ledger.Pair[uint32, string] = struct{key: uint32, value: string}\n")
}

func TestRun_RepeatedRootsKeepCommas(t *testing.T) {
	out, _, err := runCLI(t, "--plans=false", "--type", "Pair[uint32, string]", "--type", "Op", "-")
	require.NoError(t, err)
	require.Contains(t, out, "root ledger.Pair[uint32, string], ledger.Op\n")
	require.Contains(t, out, "ledger.Op = enum{")
	require.NotContains(t, out, "ledger.Entry =")
}

func TestRun_Formats(t *testing.T) {
	for _, name := range []string{"json", "yaml", "cbor"} {
		t.Run(name, func(t *testing.T) {
			out, _, err := runCLI(t, "--format", name, "-")
			require.NoError(t, err)

			format, err := schema.ParseFormat(name)
			require.NoError(t, err)
			doc, err := schema.ReadDocument(strings.NewReader(out), format)
			require.NoError(t, err)
			require.Equal(t, "ledger.Entry, ledger.Op", doc.Root)

			r, err := doc.Registry()
			require.NoError(t, err)
			require.True(t, r.Has("ledger.Entry"))
		})
	}
}

func TestRun_Errors(t *testing.T) {
	_, _, err := runCLI(t)
	require.Error(t, err)

	_, _, err = runCLI(t, "--format", "xml", "-")
	require.ErrorIs(t, err, errs.ErrInvalidDefinition)

	_, _, err = runCLI(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, stderr, err := runCLI(t, "-t", "Missing", "-")
	require.ErrorIs(t, err, errDefinitions)
	require.Contains(t, stderr, "unsupported type")

	_, _, err = runCLI(t, "-t", "Pair[uint32]", "-")
	require.ErrorIs(t, err, errDefinitions)
}

func TestRun_BadDefinitions(t *testing.T) {
	path := writeDefinitions(t, `
types:
  - name: Clash
    shape: sum
    discriminant: explicit
    variants:
      - {name: A, discriminant: "1"}
      - {name: B, discriminant: "1"}
`)

	var stdout, stderr bytes.Buffer
	err := run([]string{path}, nil, &stdout, &stderr)
	require.ErrorIs(t, err, errDefinitions)
	require.Empty(t, stdout.String())
	require.Contains(t, stderr.String(), "type=Clash")
}
