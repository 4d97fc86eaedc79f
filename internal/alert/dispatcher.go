package alert

import (
	"context"
	"fmt"

	"tradepilot/internal/gateway/notifier"
	"tradepilot/internal/logger"
	"tradepilot/internal/metrics"
	"tradepilot/internal/store"
	"tradepilot/internal/store/model"
)

// Commentator writes the AI rationale for one prediction. It never fails.
type Commentator interface {
	Generate(ctx context.Context, fields map[string]any) string
}

type Options struct {
	// Confidence strictly above the threshold asks for commentary.
	CommentaryThreshold float64
}

// Dispatcher delivers each pending prediction at most once. A row is marked
// sent only after its message went out; a crash in between resends it.
type Dispatcher struct {
	opts       Options
	flag       Flag
	queue      store.PredictionQueue
	taxonomy   *Taxonomy
	commentary Commentator
	notify     notifier.TextNotifier
}

func NewDispatcher(opts Options, flag Flag, queue store.PredictionQueue, taxonomy *Taxonomy, commentary Commentator, notify notifier.TextNotifier) *Dispatcher {
	if opts.CommentaryThreshold <= 0 {
		opts.CommentaryThreshold = 70
	}
	return &Dispatcher{
		opts:       opts,
		flag:       flag,
		queue:      queue,
		taxonomy:   taxonomy,
		commentary: commentary,
		notify:     notify,
	}
}

// RunCycle processes the pending rows in query order. The first error stops
// the cycle; rows already marked stay marked.
func (d *Dispatcher) RunCycle(ctx context.Context) error {
	if !d.flag.Enabled() {
		logger.Infof("alerts are toggled off (%s missing), skipping", d.flag.Path)
		return nil
	}
	rows, err := d.queue.UnsentPredictions(ctx)
	if err != nil {
		return fmt.Errorf("load unsent predictions: %w", err)
	}
	if len(rows) == 0 {
		logger.Infof("no new predictions to send")
		return nil
	}
	logger.Infof("found %d new predictions to process", len(rows))

	sent := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := d.deliver(ctx, row)
		if err != nil {
			metrics.CycleFailures.WithLabelValues("alerts").Inc()
			return fmt.Errorf("prediction %d: %w", row.ID, err)
		}
		if ok {
			sent++
		}
	}
	logger.Infof("alert cycle done: %d sent, %d pending", sent, len(rows)-sent)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, row model.PredictionRecord) (bool, error) {
	kind, recommendation := d.taxonomy.Classify(row.Symbol, row.Timeframe, row.Signal)
	if kind == KindNone {
		// 不在任何分类表中：保持未发送，不写库
		metrics.Alerts.WithLabelValues("none", "skipped").Inc()
		logger.Debugf("prediction %d (%s %s) matches no alert table, left pending", row.ID, row.Symbol, row.Timeframe)
		return false, nil
	}
	rationale := NoCommentary
	if row.Confidence > d.opts.CommentaryThreshold && d.commentary != nil {
		rationale = d.commentary.Generate(ctx, commentaryFields(row))
	}
	msg := Format(Message{
		Kind:           kind,
		Symbol:         row.Symbol,
		Timeframe:      row.Timeframe,
		Price:          row.Price,
		Confidence:     row.Confidence,
		Recommendation: recommendation,
		Rationale:      rationale,
	})
	if err := d.notify.SendText(ctx, msg); err != nil {
		metrics.Alerts.WithLabelValues(string(kind), "failed").Inc()
		return false, fmt.Errorf("send: %w", err)
	}
	if err := d.queue.MarkPredictionSent(ctx, row.ID); err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}
	metrics.Alerts.WithLabelValues(string(kind), "sent").Inc()
	logger.Infof("prediction %d (%s %s %s) sent as %s", row.ID, row.Symbol, row.Timeframe, row.Signal, kind)
	return true, nil
}

func commentaryFields(row model.PredictionRecord) map[string]any {
	fields := map[string]any{
		"symbol":     row.Symbol,
		"timeframe":  row.Timeframe,
		"signal":     row.Signal,
		"confidence": row.Confidence,
	}
	if row.Price != nil {
		fields["price"] = *row.Price
	}
	return fields
}

// SendTestAlert pushes a fixed sample through commentary, formatter and
// notifier to confirm connectivity. It does not touch the store.
func SendTestAlert(ctx context.Context, commentary Commentator, notify notifier.TextNotifier) error {
	price := 65432.10
	fields := map[string]any{"symbol": "BTC", "timeframe": "1h", "signal": "UP", "confidence": 99.99, "price": price}
	rationale := NoCommentary
	if commentary != nil {
		rationale = commentary.Generate(ctx, fields)
	}
	msg := Format(Message{
		Kind:           KindPrediction,
		Symbol:         "BTC",
		Timeframe:      "1h",
		Price:          &price,
		Confidence:     99.99,
		Recommendation: "UP",
		Rationale:      rationale,
	})
	if err := notify.SendText(ctx, msg); err != nil {
		return fmt.Errorf("send test alert: %w", err)
	}
	logger.Infof("test alert sent")
	return nil
}
