// internal/monitor/takedown.go
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"trendmint/internal/common/config"
	"trendmint/internal/common/logger"
	"trendmint/internal/ledger"
)

// EmailSender sends the legal notification email.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// TopicPublisher fans the notification out to the legal alert topic.
type TopicPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Monitor periodically scans published listings for takedown complaints.
// A hit flags the listing with a COPYRIGHT_REVIEW record and notifies
// legal; published records are never deleted or rewritten. Scan failures
// are recorded and skipped, never fatal to the host process.
type Monitor struct {
	cfg     config.MonitorConfig
	sources []NoticeSource
	audit   ledger.Ledger
	email   EmailSender
	topic   TopicPublisher
	logger  logger.Logger

	mu      sync.Mutex
	flagged map[string]bool // platform@assetId already under review

	stop chan struct{}
	done chan struct{}
}

func New(cfg config.MonitorConfig, sources []NoticeSource, audit ledger.Ledger, email EmailSender, topic TopicPublisher, log logger.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		sources: sources,
		audit:   audit,
		email:   email,
		topic:   topic,
		logger:  log.WithFields(map[string]interface{}{"component": "takedown-monitor"}),
		flagged: make(map[string]bool),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the scan loop. No-op when the monitor is disabled.
func (m *Monitor) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		close(m.done)
		return
	}
	go m.loop(ctx)
}

// Stop shuts the loop down and waits for an in-progress scan to finish.
func (m *Monitor) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	interval := config.GetDuration(m.cfg.ScanInterval)
	ticker := newTicker(interval)
	defer ticker.Stop()

	m.ScanOnce(ctx)
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ScanOnce(ctx)
		}
	}
}

// ScanOnce sweeps all sources once. Exported so an operator can trigger
// an out-of-band scan.
func (m *Monitor) ScanOnce(ctx context.Context) {
	published := m.publishedIndex()

	for _, source := range m.sources {
		notices, err := source.PendingTakedowns(ctx)
		if err != nil {
			m.logger.WithError(err).Warn("takedown scan failed", map[string]interface{}{
				"platform": source.Name(),
			})
			if aerr := m.audit.Append(ledger.Record{
				Type:    ledger.RecordTakedownScanError,
				Payload: map[string]interface{}{"platform": source.Name(), "details": err.Error()},
			}); aerr != nil {
				m.logger.WithError(aerr).Error("audit ledger append failed", nil)
			}
			continue
		}

		for _, notice := range notices {
			rec, ok := published[noticeKey(notice.Platform, notice.AssetID)]
			if !ok {
				continue
			}
			m.flag(ctx, rec, notice)
		}
	}
}

func (m *Monitor) flag(ctx context.Context, published ledger.Record, notice Notice) {
	key := noticeKey(notice.Platform, notice.AssetID)
	m.mu.Lock()
	if m.flagged[key] {
		m.mu.Unlock()
		return
	}
	m.flagged[key] = true
	m.mu.Unlock()

	if err := m.audit.Append(ledger.Record{
		Type:    ledger.RecordCopyrightReview,
		Keyword: published.Keyword,
		Payload: map[string]interface{}{
			"platform": notice.Platform,
			"assetId":  notice.AssetID,
			"reason":   notice.Reason,
		},
	}); err != nil {
		m.logger.WithError(err).Error("audit ledger append failed", map[string]interface{}{
			"keyword": published.Keyword,
		})
		return
	}

	m.logger.Warn("listing flagged for copyright review", map[string]interface{}{
		"keyword":  published.Keyword,
		"platform": notice.Platform,
		"assetId":  notice.AssetID,
	})
	m.notifyLegal(ctx, published.Keyword, notice)
}

// notifyLegal emails legal and publishes to the alert topic. Delivery
// failures are logged; the flag itself is already on the ledger.
func (m *Monitor) notifyLegal(ctx context.Context, keyword string, notice Notice) {
	subject := fmt.Sprintf("Takedown notice: %s on %s", keyword, notice.Platform)
	body := fmt.Sprintf(
		"A takedown complaint was filed against listing %s (keyword %q) on %s.\nReason: %s\nThe listing has been flagged for copyright review.",
		notice.AssetID, keyword, notice.Platform, notice.Reason,
	)

	if m.email != nil && m.cfg.LegalEmail != "" {
		_, err := m.email.SendEmail(ctx, &ses.SendEmailInput{
			Source: awssdk.String(m.cfg.FromEmail),
			Destination: &sestypes.Destination{
				ToAddresses: []string{m.cfg.LegalEmail},
			},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: awssdk.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: awssdk.String(body)},
				},
			},
		})
		if err != nil {
			m.logger.WithError(err).Warn("legal email delivery failed", map[string]interface{}{
				"keyword": keyword,
			})
		}
	}

	if m.topic != nil && m.cfg.SNSTopicARN != "" {
		_, err := m.topic.Publish(ctx, &sns.PublishInput{
			TopicArn: awssdk.String(m.cfg.SNSTopicARN),
			Subject:  awssdk.String(subject),
			Message:  awssdk.String(body),
		})
		if err != nil {
			m.logger.WithError(err).Warn("legal topic publish failed", map[string]interface{}{
				"keyword": keyword,
			})
		}
	}
}

func (m *Monitor) publishedIndex() map[string]ledger.Record {
	index := make(map[string]ledger.Record)
	for _, rec := range m.audit.Published() {
		platform, _ := rec.Payload["target"].(string)
		assetID, _ := rec.Payload["platformRef"].(string)
		if platform == "" || assetID == "" {
			continue
		}
		index[noticeKey(platform, assetID)] = rec
	}
	return index
}

func noticeKey(platform, assetID string) string {
	return platform + "@" + assetID
}

func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		d = 24 * time.Hour
	}
	return time.NewTicker(d)
}
