package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for simplicity
	},
}

// wsEvent is one frame of a scan's progress stream. A "file" frame carries
// exactly one newly finished file; a "status" frame carries the job counters
// without the accumulated results, which the file frames already delivered.
type wsEvent struct {
	Type string       `json:"type"` // "file" | "status"
	File *FileResult  `json:"file,omitempty"`
	Job  *JobResponse `json:"job,omitempty"`
}

// handleWebSocket streams scan progress for one job. The client first
// receives the files already processed, then a delta per file as the scan
// advances, with a status frame after each batch. The stream ends when the
// job reaches a terminal status.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		s.logger.Error("WebSocket connection missing job_id")
		return
	}

	updates := s.jobMgr.Subscribe(jobID)
	defer s.jobMgr.Unsubscribe(jobID, updates)

	// sent counts the file results the client has already seen. Snapshots
	// from the manager carry the full result list, so a dropped update is
	// recovered from the next one.
	sent := 0
	if job, err := s.jobMgr.GetJob(jobID); err == nil {
		if !s.writeScanProgress(conn, job, &sent) || jobFinished(job.Status) {
			return
		}
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			if !s.writeScanProgress(conn, job, &sent) || jobFinished(job.Status) {
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeScanProgress sends the unseen file results followed by a status frame.
// Returns false once the connection is unusable.
func (s *Server) writeScanProgress(conn *websocket.Conn, job *Job, sent *int) bool {
	for ; *sent < len(job.Results); *sent++ {
		result := job.Results[*sent]
		if !s.writeEvent(conn, wsEvent{Type: "file", File: &result}) {
			return false
		}
	}

	status := s.jobToResponse(job)
	status.Results = nil
	return s.writeEvent(conn, wsEvent{Type: "status", Job: status})
}

func (s *Server) writeEvent(conn *websocket.Conn, ev wsEvent) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to marshal scan event: %v", err)
		return true
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}

func jobFinished(status JobStatus) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusCancelled
}
