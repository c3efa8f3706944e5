package diagnostics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hicv-scanner/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	png     []byte
	html    string
	shotErr error
}

func (f fakeSource) Screenshot(ctx context.Context) ([]byte, error) { return f.png, f.shotErr }
func (f fakeSource) Content(ctx context.Context) (string, error)    { return f.html, nil }

func TestRecorderCaptureWritesBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, fakeSource{png: []byte{0x89, 'P'}, html: "<html></html>"}, utils.NewDiscardLogger())

	base := rec.Capture(context.Background(), "confirm_disabled")
	assert.Equal(t, filepath.Join(dir, "confirm_disabled"), base)

	html, err := os.ReadFile(base + ".html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(html))
	_, err = os.Stat(base + ".png")
	assert.NoError(t, err)
}

func TestRecorderCaptureSurvivesScreenshotFailure(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir, fakeSource{shotErr: errors.New("target closed"), html: "<body/>"}, utils.NewDiscardLogger())

	base := rec.Capture(context.Background(), "no_results_debug")

	_, err := os.Stat(base + ".png")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(base + ".html")
	assert.NoError(t, err)
}

func TestStageErrorNamesStageAndArtifact(t *testing.T) {
	cause := errors.New("confirm control never enabled")
	err := Fatal("calendar confirm", "debug/confirm_disabled", cause)

	assert.Equal(t, "calendar confirm: confirm control never enabled (see debug/confirm_disabled)", err.Error())
	assert.ErrorIs(t, err, cause)

	var stage *StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, "debug/confirm_disabled", stage.Artifact)
}
