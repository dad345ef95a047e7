// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspaced

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/workspaced/services/workspaced/future"
)

// ErrTooManyJobs indicates the job store is full of pending jobs.
var ErrTooManyJobs = errors.New("too many pending jobs")

// JobStatus is the state of an async job.
type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobResolved JobStatus = "resolved"
	JobRejected JobStatus = "rejected"
)

// Job is a snapshot of one tracked run.
type Job struct {
	ID        string     `json:"id"`
	Component string     `json:"component"`
	Method    string     `json:"method"`
	Status    JobStatus  `json:"status"`
	Result    any        `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Created   time.Time  `json:"created"`
	Finished  *time.Time `json:"finished,omitempty"`

	err error
}

// Err returns the rejection error of a rejected job.
func (j Job) Err() error {
	return j.err
}

// JobStore tracks runs started asynchronously so their outcome can be
// polled.
//
// Description:
//
//	Finished jobs are kept for the retention period. When the store holds
//	limit jobs, finished jobs are evicted oldest first; if all are pending,
//	Track fails with ErrTooManyJobs.
//
// Thread Safety:
//
//	Safe for concurrent use.
type JobStore struct {
	retention time.Duration
	limit     int

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewJobStore creates a store.
func NewJobStore(retention time.Duration, limit int) *JobStore {
	return &JobStore{
		retention: retention,
		limit:     limit,
		jobs:      make(map[string]*Job),
	}
}

// Track registers f and returns its job ID. Uses f's continuation.
func (s *JobStore) Track(component, method string, f *future.Future[any]) (string, error) {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Component: component,
		Method:    method,
		Status:    JobPending,
		Created:   now,
	}

	s.mu.Lock()
	s.pruneLocked(now)
	if len(s.jobs) >= s.limit && !s.evictLocked() {
		s.mu.Unlock()
		return "", ErrTooManyJobs
	}
	s.jobs[job.ID] = job
	s.mu.Unlock()

	f.OnDone(func(v any, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		finished := time.Now()
		job.Finished = &finished
		if err != nil {
			job.Status = JobRejected
			job.Error = err.Error()
			job.err = err
			return
		}
		job.Status = JobResolved
		job.Result = v
	})
	return job.ID, nil
}

// Get returns a snapshot of job id.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *JobStore) pruneLocked(now time.Time) {
	for id, job := range s.jobs {
		if job.Finished != nil && now.Sub(*job.Finished) > s.retention {
			delete(s.jobs, id)
		}
	}
}

// evictLocked removes the oldest finished job. Reports whether one was
// removed.
func (s *JobStore) evictLocked() bool {
	var finished []*Job
	for _, job := range s.jobs {
		if job.Finished != nil {
			finished = append(finished, job)
		}
	}
	if len(finished) == 0 {
		return false
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].Finished.Before(*finished[j].Finished)
	})
	delete(s.jobs, finished[0].ID)
	return true
}
