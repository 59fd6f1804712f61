package simpleprint

import (
	"encoding/json"
	"time"
)

// Wire shapes for the SimplePrint API. Raw payloads are kept alongside the
// decoded fields so the mirror entities can store them verbatim.

type RemoteFolder struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent"`
	raw    json.RawMessage
}

type RemoteFile struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
	Size   int64  `json:"size"`
	raw    json.RawMessage
}

type filesAndFoldersResponse struct {
	Folders []json.RawMessage `json:"folders"`
	Files   []json.RawMessage `json:"files"`
}

type RemoteTemps struct {
	Current struct {
		Nozzle json.Number `json:"nozzle"`
		Bed    json.Number `json:"bed"`
	} `json:"current"`
	Ambient json.Number `json:"ambient"`
}

type RemoteJob struct {
	Id         string      `json:"id"`
	File       string      `json:"file"`
	Percentage json.Number `json:"percentage"`
	Elapsed    int64       `json:"elapsed"`
}

type RemotePrinter struct {
	Id    string       `json:"id"`
	Name  string       `json:"name"`
	State string       `json:"state"`
	Job   *RemoteJob   `json:"job"`
	Temps *RemoteTemps `json:"temps"`
	raw   json.RawMessage
}

type printersResponse struct {
	Printers []json.RawMessage `json:"printers"`
}

// RemoteWebhook describes one registered webhook on the upstream side.
type RemoteWebhook struct {
	Id     string `json:"id"`
	URL    string `json:"url"`
	Events string `json:"events"`
}

type webhooksResponse struct {
	Webhooks []RemoteWebhook `json:"webhooks"`
}

// WebhookEnvelope is the inbound post shape.
type WebhookEnvelope struct {
	WebhookId string          `json:"webhook_id"`
	Event     string          `json:"event"`
	Timestamp *time.Time      `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// WebhookJobData is the job-shaped fragment of an envelope's data field.
type WebhookJobData struct {
	JobId    string `json:"job_id"`
	Printer  string `json:"printer"`
	FileName string `json:"file_name"`
}
