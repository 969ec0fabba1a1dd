package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autodub/internal/jobs"
	"autodub/internal/logging"
	"autodub/internal/pipeline"
	"autodub/internal/testsupport"
)

type instantRunner struct{}

func (instantRunner) Run(_ context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Result, error) {
	output := filepath.Join(req.OutputDir, req.JobID+".mp4")
	if err := os.WriteFile(output, []byte("video"), 0o644); err != nil {
		return nil, err
	}
	progress(pipeline.StageCompleted, 100, "done")
	return &pipeline.Result{OutputPath: output, Utterances: 1}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *jobs.Registry) {
	t.Helper()
	registry := jobs.NewRegistry(testsupport.NewConfig(t), instantRunner{}, nil, nil, logging.NewNop())
	server := httptest.NewServer(NewAPIServer(registry, logging.NewNop()).Handler())
	t.Cleanup(server.Close)
	return server, registry
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCreateGetAndDownloadJob(t *testing.T) {
	server, registry := newTestServer(t)

	body := `{"source":"https://example.com/v","target_language":"es"}`
	resp, err := http.Post(server.URL+"/api/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var created jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Status != pipeline.StageQueued {
		t.Fatalf("created = %+v", created)
	}

	registry.Wait()

	getResp, err := http.Get(server.URL + "/api/jobs/" + created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	var fetched jobs.Job
	if err := json.NewDecoder(getResp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fetched.Status != pipeline.StageCompleted || fetched.Progress != 100 {
		t.Fatalf("fetched = %+v", fetched)
	}

	dlResp, err := http.Get(server.URL + "/api/jobs/" + created.ID + "/download")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", dlResp.StatusCode)
	}
}

func TestCreateJobValidation(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/jobs", "application/json", strings.NewReader(`{"source":""}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	malformed, err := http.Post(server.URL+"/api/jobs", "application/json", strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer malformed.Body.Close()
	if malformed.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", malformed.StatusCode)
	}
}

func TestGetAndDeleteUnknownJob(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/jobs/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/jobs/nope", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", delResp.StatusCode)
	}
}

func TestDeleteJob(t *testing.T) {
	server, registry := newTestServer(t)

	created, err := registry.CreateJob(jobs.Spec{Source: "https://example.com/v", TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	registry.Wait()

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/jobs/"+created.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, ok := registry.GetJob(created.ID); ok {
		t.Fatal("job should be gone")
	}
}

func TestDownloadIncompleteJobConflicts(t *testing.T) {
	server, registry := newTestServer(t)

	created, err := registry.CreateJob(jobs.Spec{Source: "https://example.com/v", TargetLanguage: "es"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	registry.Wait()

	// Remove the artifact to exercise the gone path.
	job, _ := registry.GetJob(created.ID)
	if err := os.Remove(job.OutputPath); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	resp, err := http.Get(server.URL + "/api/jobs/" + created.ID + "/download")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
