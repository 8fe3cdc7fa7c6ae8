package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/aksmigrate/internal/state"
)

const deploymentYAML = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: demo
---
apiVersion: v1
kind: Service
metadata:
  name: demo
`

func writeManifest(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, DefaultManifestDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) add(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *progressLog) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func TestRun_SuccessWithManifests(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "kubernetes.yml", deploymentYAML)

	r := NewRunner(Options{Command: "true"}, zerolog.Nop())
	res, err := r.Run(context.Background(), root, nil)

	require.NoError(t, err)
	assert.Equal(t, state.BuildSuccessWithManifests, res.Outcome)
	assert.Equal(t, []string{"kubernetes.yml: Deployment/demo", "kubernetes.yml: Service/demo"}, res.Manifests)
	assert.Contains(t, res.Message(), "2 Kubernetes manifest")
}

func TestRun_SuccessNoManifests(t *testing.T) {
	r := NewRunner(Options{Command: "true"}, zerolog.Nop())
	res, err := r.Run(context.Background(), t.TempDir(), nil)

	require.NoError(t, err)
	assert.Equal(t, state.BuildSuccessNoManifests, res.Outcome)
	assert.Empty(t, res.Manifests)
}

func TestRun_NonZeroExit(t *testing.T) {
	r := NewRunner(Options{Command: `sh -c "echo broken >&2; exit 3"`}, zerolog.Nop())
	res, err := r.Run(context.Background(), t.TempDir(), nil)

	require.NoError(t, err)
	assert.Equal(t, state.BuildFailure, res.Outcome)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "broken")
	assert.Contains(t, res.Message(), "\nbroken")
	assert.False(t, r.Running())
}

func TestTailBuffer_KeepsLastBytes(t *testing.T) {
	var b tailBuffer
	head := strings.Repeat("h", maxOutputBytes-10)
	_, _ = b.Write([]byte(head))
	n, err := b.Write([]byte(strings.Repeat("m", 100) + "[ERROR] compilation failed\n"))
	require.NoError(t, err)
	assert.Equal(t, 127, n)

	out := b.String()
	assert.Len(t, out, maxOutputBytes)
	assert.True(t, strings.HasSuffix(out, "[ERROR] compilation failed\n"))

	_, _ = b.Write([]byte(strings.Repeat("x", 2*maxOutputBytes) + "end"))
	out = b.String()
	assert.Len(t, out, maxOutputBytes)
	assert.True(t, strings.HasSuffix(out, "xend"))
}

func TestResultMessage_IncludesOutputTail(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf("[INFO] step %d", i))
	}
	lines = append(lines, "[ERROR] Failed to execute goal", "")
	res := Result{Outcome: state.BuildFailure, ExitCode: 1, Output: strings.Join(lines, "\n")}

	msg := res.Message()
	assert.True(t, strings.HasPrefix(msg, "Build failed with exit code 1.\n"))
	assert.True(t, strings.HasSuffix(msg, "[ERROR] Failed to execute goal"))
	assert.Contains(t, msg, "[INFO] step 49")
	assert.NotContains(t, msg, "[INFO] step 30\n")
	assert.Len(t, strings.Split(msg, "\n"), 1+messageTailLines)

	assert.Equal(t, "Build failed with exit code 2.", Result{Outcome: state.BuildFailure, ExitCode: 2}.Message())
}

func TestRun_ToolNotFound(t *testing.T) {
	r := NewRunner(Options{Command: "definitely-not-a-build-tool-xyz package"}, zerolog.Nop())
	progress := &progressLog{}
	res, err := r.Run(context.Background(), t.TempDir(), progress.add)

	require.NoError(t, err)
	assert.Equal(t, state.BuildFailure, res.Outcome)
	assert.Error(t, res.Err)
	assert.Contains(t, res.Message(), "Build failed")
	assert.Equal(t, []int{100}, progress.snapshot())
}

func TestRun_ProgressTicksThenCompletesOnce(t *testing.T) {
	r := NewRunner(Options{Command: "sleep 0.2", Interval: 10 * time.Millisecond}, zerolog.Nop())
	progress := &progressLog{}

	_, err := r.Run(context.Background(), t.TempDir(), progress.add)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	values := progress.snapshot()
	require.GreaterOrEqual(t, len(values), 2)
	assert.Equal(t, 100, values[len(values)-1])
	for _, v := range values[:len(values)-1] {
		assert.LessOrEqual(t, v, progressCap)
	}
}

func TestRun_RejectsConcurrentBuild(t *testing.T) {
	r := NewRunner(Options{Command: "sleep 0.3"}, zerolog.Nop())
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		_, _ = r.Run(context.Background(), t.TempDir(), nil)
	}()
	<-started
	require.Eventually(t, r.Running, time.Second, time.Millisecond)

	_, err := r.Run(context.Background(), t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrBuildInProgress)
	wg.Wait()
}

func TestRun_BadCommandLine(t *testing.T) {
	r := NewRunner(Options{Command: `mvn "unterminated`}, zerolog.Nop())
	_, err := r.Run(context.Background(), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestParseManifests_RejectsMissingKind(t *testing.T) {
	_, err := ParseManifests([]byte("apiVersion: v1\nmetadata:\n  name: x\n"))
	assert.Error(t, err)
}

func TestFindManifests_MissingDir(t *testing.T) {
	found, err := FindManifests(filepath.Join(t.TempDir(), "nope"))
	assert.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetect(t *testing.T) {
	root := t.TempDir()
	p, err := Detect(root)
	require.NoError(t, err)
	assert.False(t, p.IsQuarkus)

	pom := `<project><dependencies>
<dependency><groupId>io.quarkus</groupId><artifactId>quarkus-kubernetes</artifactId></dependency>
</dependencies></project>`
	require.NoError(t, os.WriteFile(filepath.Join(root, "pom.xml"), []byte(pom), 0o644))

	p, err = Detect(root)
	require.NoError(t, err)
	assert.True(t, p.IsQuarkus)
	assert.True(t, p.HasKubernetesExtension)
}
