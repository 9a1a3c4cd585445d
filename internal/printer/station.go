// Package printer is the receipt printer station: it consumes committed
// sales from the feed and prints each receipt exactly once.
package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	kafkax "github.com/ariefcatur/go-pos-terminal/internal/kafka"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/ariefcatur/go-pos-terminal/internal/receipt"
	"github.com/ariefcatur/go-pos-terminal/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Station struct {
	Redis       *redis.Client
	Profile     receipt.Profile
	ServiceName string
	Location    *time.Location
	Logger      *slog.Logger

	// SpoolDir, when set, receives one <receipt id>.txt per sale; otherwise
	// receipts are written to Out.
	SpoolDir string
	Out      io.Writer

	outMu sync.Mutex
}

// HandleSaleCommitted is installed as the consumer handler.
func (s *Station) HandleSaleCommitted(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env pos.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.logger().Warn("skipping undecodable message", slog.Int64("offset", m.Offset), slog.String("error", err.Error()))
		return nil
	}
	if env.EventType != pos.EventTypeSaleCommitted {
		return nil
	}

	// 2) dedup via Redis on event_id
	done, err := redisx.Claimed(ctx, s.Redis, s.ServiceName, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if done {
		s.logger().Info("event already printed", slog.String("event_id", env.EventID))
		return nil
	}
	first, err := redisx.Claim(ctx, s.Redis, s.ServiceName, env.EventID, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		s.logger().Info("duplicate event ignored", slog.String("event_id", env.EventID))
		return nil
	}

	// 3) decode payload and print; release the claim so a retry can print
	p, err := kafkax.UnwrapPayload[pos.SaleCommittedPayload](env.Payload)
	if err == nil {
		err = s.print(p.Sale)
	}
	if err != nil {
		if uerr := redisx.Unclaim(ctx, s.Redis, s.ServiceName, env.EventID); uerr != nil {
			s.logger().Warn("release dedup claim", slog.String("event_id", env.EventID), slog.String("error", uerr.Error()))
		}
		return err
	}
	s.logger().Info("receipt printed", slog.String("receipt_id", p.Sale.ID), slog.String("event_id", env.EventID))
	return nil
}

func (s *Station) print(sale pos.Sale) error {
	var buf bytes.Buffer
	if err := receipt.Render(&buf, receipt.NewView(sale, s.Profile), receipt.WithLocation(s.Location)); err != nil {
		return fmt.Errorf("render %s: %w", sale.ID, err)
	}

	if s.SpoolDir != "" {
		name := filepath.Join(s.SpoolDir, filepath.Base(sale.ID)+".txt")
		if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("spool %s: %w", sale.ID, err)
		}
		return nil
	}

	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("print %s: %w", sale.ID, err)
	}
	return nil
}

func (s *Station) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
