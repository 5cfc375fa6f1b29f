package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/gestionqr/gestionqr/internal/metrics"
	"github.com/gestionqr/gestionqr/internal/model"
	"github.com/gestionqr/gestionqr/internal/qr"
	"github.com/gestionqr/gestionqr/internal/queue"
	"github.com/gestionqr/gestionqr/internal/records"
	"github.com/gestionqr/gestionqr/internal/storage"
)

// Records is the part of the record layer the worker needs.
type Records interface {
	GetByID(ctx context.Context, id string, tipo model.Tipo) (*model.Record, error)
	SaveQRPayload(ctx context.Context, tipo model.Tipo, id, payload string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	records Records
	store   storage.Store
	builder qr.Builder
	size    int
	now     func() time.Time
	log     logrus.FieldLogger
}

// NewProcessor constructs a worker processor.
func NewProcessor(recs Records, store storage.Store, builder qr.Builder, log logrus.FieldLogger) *Processor {
	return &Processor{records: recs, store: store, builder: builder, size: qr.DefaultSize, now: time.Now, log: log}
}

// Handler registers the label job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.LabelRenderTask, p.handleLabel)
	return mux
}

// LabelKey is where a rendered label is stored.
func LabelKey(tipo model.Tipo, id string, at time.Time) string {
	return fmt.Sprintf("labels/%s/%s/%d.png", tipo, id, at.UnixMilli())
}

func (p *Processor) handleLabel(ctx context.Context, task *asynq.Task) error {
	var payload queue.LabelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	key, err := p.Render(ctx, payload)
	if errors.Is(err, records.ErrNotFound) || errors.Is(err, records.ErrInvalidTipo) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	return writeResult(task, key)
}

// writeResult stores the label key as the task result so the API can resolve
// a task id into a download link. Tasks built outside a server have no writer.
func writeResult(task *asynq.Task, key string) error {
	rw := task.ResultWriter()
	if rw == nil {
		return nil
	}
	if _, err := rw.Write([]byte(key)); err != nil {
		return fmt.Errorf("write label result: %w", err)
	}
	return nil
}

// Render builds the payload for one record, stores the PNG label and saves
// the payload on the record. It returns the storage key of the label.
func (p *Processor) Render(ctx context.Context, payload queue.LabelPayload) (string, error) {
	log := p.log.WithFields(logrus.Fields{"tipo": payload.Tipo, "id": payload.ID})
	if !payload.Tipo.Valid() {
		return "", records.ErrInvalidTipo
	}
	if _, err := p.records.GetByID(ctx, payload.ID, payload.Tipo); err != nil {
		log.WithError(err).Warn("label skipped")
		return "", err
	}
	link := p.builder.Payload(payload.ID, payload.Tipo, payload.Origin)
	png, err := qr.RenderPNG(link, p.size)
	if err != nil {
		return "", err
	}
	key := LabelKey(payload.Tipo, payload.ID, p.now())
	if err := p.store.Put(ctx, key, bytes.NewReader(png), int64(len(png)), storage.PutOptions{ContentType: "image/png"}); err != nil {
		return "", fmt.Errorf("store label: %w", err)
	}
	if err := p.records.SaveQRPayload(ctx, payload.Tipo, payload.ID, link); err != nil {
		return "", err
	}
	metrics.LabelsRendered.WithLabelValues(string(payload.Tipo)).Inc()
	log.WithField("key", key).Info("label rendered")
	return key, nil
}
