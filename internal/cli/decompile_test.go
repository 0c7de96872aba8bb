package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mgpai22/vccdec/internal/candidate"
	"github.com/mgpai22/vccdec/internal/caption"
	"github.com/mgpai22/vccdec/internal/hashindex"
	"github.com/mgpai22/vccdec/internal/logging"
	"github.com/mgpai22/vccdec/internal/resolve"
	"github.com/mgpai22/vccdec/internal/script"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unknownHash = 0xDEADBEEF

// gameTree lays out <root>/resource/closecaption_english.dat next to a
// scripts directory with a sound manifest declaring one soundscript.
func gameTree(t *testing.T) (root, input string) {
	t.Helper()
	root = t.TempDir()

	writeFile(t, filepath.Join(root, "scripts", "game_sounds_manifest.txt"), `"game_sounds_manifest"
{
	"precache_file"	"scripts/npc_sounds.txt"
}
`)
	writeFile(t, filepath.Join(root, "scripts", "npc_sounds.txt"), `"NPC_Greeting"
{
	"channel"	"CHAN_VOICE"
	"wave"		"vo/hello.wav"
}
`)

	b := caption.NewBuilder(caption.DefaultBlockSize)
	require.NoError(t, b.Add(hashindex.Hash("NPC_Greeting"), "<clr:255,255,255>Hello there"))
	require.NoError(t, b.Add(unknownHash, "Nobody knows my name"))

	input = filepath.Join(root, "resource", "closecaption_english.dat")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0755))
	require.NoError(t, os.WriteFile(input, b.Build(), 0644))
	return root, input
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testDecompileOptions(input string) decompileOptions {
	opts := decompileOptions{
		Input:   input,
		Resolve: resolve.DefaultOptions(),
		Script:  script.DefaultOptions(),
		Accept:  true,
	}
	opts.Script.Encoding = script.EncodingUTF8
	return opts
}

func TestDecompileRecoversNamesFromManifest(t *testing.T) {
	_, input := gameTree(t)

	var out bytes.Buffer
	opts := testDecompileOptions(input)
	opts.Out = &out

	path, err := decompile(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(input, ".dat")+"_d.txt", path)
	assert.Contains(t, out.String(), "Hashes found: 1, expected: 2")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"Language" "english"`)
	assert.Contains(t, text, `"NPC_Greeting"`)
	assert.Contains(t, text, `"<clr:255,255,255>Hello there"`)
	assert.Contains(t, text, `"0xDEADBEEF"`)
	assert.Contains(t, text, `"Nobody knows my name"`)
}

func TestDecompileIsRepeatable(t *testing.T) {
	_, input := gameTree(t)
	opts := testDecompileOptions(input)

	path, err := decompile(context.Background(), opts, nil)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = decompile(context.Background(), opts, nil)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecompileWithoutManifestStillWrites(t *testing.T) {
	root, input := gameTree(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "scripts")))

	var out bytes.Buffer
	opts := testDecompileOptions(input)
	opts.Out = &out
	opts.Sources.Names = []string{"npc_greeting"}

	path, err := decompile(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Hashes found: 1, expected: 2")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// names keep the spelling they were given in
	assert.Contains(t, string(data), `"npc_greeting"`)
}

func TestDecompileMissingSoundDirWarns(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	_, input := gameTree(t)

	var out, logs bytes.Buffer
	opts := testDecompileOptions(input)
	opts.SoundDir = filepath.Join(t.TempDir(), "nope")
	opts.Out = &out

	path, err := decompile(context.Background(), opts, logging.NewLoggerTo(0, &logs))
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), "Hashes found: 0, expected: 2")
	assert.Contains(t, logs.String(), "WARN")
	assert.Contains(t, logs.String(), "nope")
}

func TestCheckSoundDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "game_sounds_manifest.txt")
	writeFile(t, file, "")

	assert.NoError(t, checkSoundDir(dir))
	assert.ErrorIs(t, checkSoundDir(file), candidate.ErrSourceUnavailable)

	err := checkSoundDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, candidate.ErrSourceUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecompileOutputIgnoresVerbosity(t *testing.T) {
	_, input := gameTree(t)
	opts := testDecompileOptions(input)

	var quietOut, loudOut, quietLogs, loudLogs bytes.Buffer

	opts.Out = &quietOut
	path, err := decompile(context.Background(), opts, logging.NewLoggerTo(0, &quietLogs))
	require.NoError(t, err)
	quiet, err := os.ReadFile(path)
	require.NoError(t, err)

	opts.Out = &loudOut
	_, err = decompile(context.Background(), opts, logging.NewLoggerTo(logging.MaxVerbosity, &loudLogs))
	require.NoError(t, err)
	loud, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, quiet, loud)
	assert.Equal(t, quietOut.String(), loudOut.String())
	assert.NotContains(t, quietLogs.String(), "Directory entry")
	assert.NotContains(t, quietLogs.String(), "collisions")
	assert.Contains(t, loudLogs.String(), "Directory entry")
	assert.Contains(t, loudLogs.String(), "Candidate hash collisions")
}

func TestDecompileNoDiscoverLeavesHashes(t *testing.T) {
	_, input := gameTree(t)

	var out bytes.Buffer
	opts := testDecompileOptions(input)
	opts.NoDiscover = true
	opts.Out = &out

	path, err := decompile(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Hashes found: 0, expected: 2")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), hashindex.FormatHash(hashindex.Hash("NPC_Greeting")))
}

func TestDecompileMalformedErrorNamesInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "closecaption_english.dat")
	require.NoError(t, os.WriteFile(input, []byte("VCCX\x01\x00\x00\x00"), 0644))

	opts := testDecompileOptions(input)
	opts.NoDiscover = true

	_, err := decompile(context.Background(), opts, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, caption.ErrMalformedContainer))
	assert.Contains(t, err.Error(), input)

	_, statErr := os.Stat(defaultOutputPath(input, false))
	assert.True(t, os.IsNotExist(statErr), "no output on fatal error")
}

func TestDecompilePlaceholdersRoundTrip(t *testing.T) {
	_, input := gameTree(t)
	original, err := os.ReadFile(input)
	require.NoError(t, err)

	opts := testDecompileOptions(input)
	opts.Resolve.Placeholders = true
	opts.Resolve.Workers = 2
	opts.Script.Encoding = script.EncodingUTF16

	scriptPath, err := decompile(context.Background(), opts, nil)
	require.NoError(t, err)

	doc, err := script.ParseFile(scriptPath)
	require.NoError(t, err)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, "english", doc.Language)

	var placeholder string
	for _, e := range doc.Entries {
		if e.Text == "Nobody knows my name" {
			placeholder = e.Key
		}
	}
	require.NotEmpty(t, placeholder)
	assert.True(t, strings.HasPrefix(placeholder, "DEADBEEF_"))
	assert.Equal(t, uint32(unknownHash), hashindex.Hash(placeholder))

	compiled, err := compile(compileOptions{
		Input:     scriptPath,
		Output:    filepath.Join(t.TempDir(), "out.dat"),
		BlockSize: caption.DefaultBlockSize,
		Accept:    true,
	}, nil)
	require.NoError(t, err)

	rebuilt, err := os.ReadFile(compiled)
	require.NoError(t, err)
	assert.Equal(t, original, rebuilt)
}

func TestDecompileDeclinedOverwrite(t *testing.T) {
	_, input := gameTree(t)
	existing := defaultOutputPath(input, false)
	writeFile(t, existing, "keep me")

	var out bytes.Buffer
	opts := testDecompileOptions(input)
	opts.Accept = false
	opts.In = strings.NewReader("n\n")
	opts.Out = &out

	path, err := decompile(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Contains(t, out.String(), "Process canceled")

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestInferLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"closecaption_english.dat", "english"},
		{"resource/closecaption_french.dat", "french"},
		{"subtitles_schinese.dat", "schinese"},
		{"closecaption_english_extra.dat", "english"},
		{"captions.dat", ""},
		{"_english.dat", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, inferLanguage(tt.path))
		})
	}
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("res", "closecaption_english_d.txt"),
		defaultOutputPath(filepath.Join("res", "closecaption_english.dat"), false))
	assert.Equal(t, filepath.Join("res", "closecaption_english.txt"),
		defaultOutputPath(filepath.Join("res", "closecaption_english.dat"), true))
}

func TestConfirmOverwrite(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "out.txt")
	writeFile(t, existing, "x")
	missing := filepath.Join(t.TempDir(), "missing.txt")

	tests := []struct {
		name    string
		path    string
		accept  bool
		in      string
		nilIn   bool
		want    bool
		wantErr bool
	}{
		{name: "missing file", path: missing, nilIn: true, want: true},
		{name: "accept flag", path: existing, accept: true, nilIn: true, want: true},
		{name: "answer yes", path: existing, in: "y\n", want: true},
		{name: "empty answer", path: existing, in: "\n", want: true},
		{name: "eof", path: existing, in: "", want: true},
		{name: "answer no", path: existing, in: "n\n", want: false},
		{name: "answer NO", path: existing, in: " N \n", want: false},
		{name: "no input", path: existing, nilIn: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in io.Reader
			if !tt.nilIn {
				in = strings.NewReader(tt.in)
			}
			var out bytes.Buffer

			got, err := confirmOverwrite(tt.path, tt.accept, in, &out, nil)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptInput(t *testing.T) {
	cmd := &cobra.Command{}
	answers := strings.NewReader("y\n")
	cmd.SetIn(answers)
	assert.Equal(t, io.Reader(answers), promptInput(cmd))

	redirected, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	t.Cleanup(func() { redirected.Close() })
	cmd.SetIn(redirected)
	assert.Nil(t, promptInput(cmd))
}
