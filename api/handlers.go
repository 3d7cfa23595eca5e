package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/taskq/job"
)

var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

// JobRequest is the body of POST /jobs and POST /jobs/run. Data may be a
// JSON object or a string holding one.
type JobRequest struct {
	Route string          `json:"route"`
	Data  json.RawMessage `json:"data,omitempty"`
	Queue *int            `json:"queue,omitempty"`
}

func decodeJob(w http.ResponseWriter, r *http.Request) (*JobRequest, *job.Job, error) {
	var req JobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if req.Route == "" {
		return nil, nil, fmt.Errorf("%w: route is required", errBadRequest)
	}

	data, err := decodeData(req.Data)
	if err != nil {
		return nil, nil, err
	}
	return &req, job.New(req.Route, data), nil
}

func decodeData(raw json.RawMessage) (job.Data, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}

	var data job.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: data must be a JSON object: %v", errBadRequest, err)
	}
	return data, nil
}

func (a *API) postJob(w http.ResponseWriter, r *http.Request) {
	req, j, err := decodeJob(w, r)
	if err != nil {
		a.writeError(w, r, err, Response{})
		return
	}

	var jobID string
	if req.Queue != nil {
		jobID, err = a.q.PostToQueue(r.Context(), j, *req.Queue)
	} else {
		jobID, err = a.q.Post(r.Context(), j)
	}
	if err != nil {
		a.writeError(w, r, err, Response{Route: j.Route})
		return
	}
	a.writeJSON(w, http.StatusOK, Response{Status: statusOkay, JobID: jobID})
}

func (a *API) runJob(w http.ResponseWriter, r *http.Request) {
	_, j, err := decodeJob(w, r)
	if err != nil {
		a.writeError(w, r, err, Response{})
		return
	}

	start := time.Now()
	result, err := a.q.Execute(r.Context(), j)
	duration := time.Since(start).Seconds()
	if err != nil {
		a.writeError(w, r, err, Response{Route: j.Route, Duration: duration})
		return
	}
	a.writeJSON(w, http.StatusOK, Response{
		Status:   statusOkay,
		Route:    j.Route,
		Result:   result,
		Duration: duration,
	})
}

func (a *API) workerRun(w http.ResponseWriter, r *http.Request) {
	j, err := a.q.Fetch(r.Context())
	if err != nil {
		a.writeError(w, r, err, Response{})
		return
	}
	if j == nil {
		a.writeJSON(w, http.StatusOK, Response{Status: statusNoJob})
		return
	}

	start := time.Now()
	err = a.q.Run(r.Context(), j)
	resp := Response{JobID: j.ID, Route: j.Label(), Duration: time.Since(start).Seconds()}
	if err != nil {
		a.writeError(w, r, err, resp)
		return
	}
	resp.Status = statusOkay
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) size(w http.ResponseWriter, r *http.Request) {
	n, err := a.q.Size(r.Context())
	if err != nil {
		a.writeError(w, r, err, Response{})
		return
	}
	a.writeJSON(w, http.StatusOK, Response{Size: &n})
}

func (a *API) purge(w http.ResponseWriter, r *http.Request) {
	if err := a.q.Purge(r.Context()); err != nil {
		a.writeError(w, r, err, Response{})
		return
	}
	a.writeJSON(w, http.StatusOK, Response{Status: statusOkay})
}
