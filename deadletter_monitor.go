package relaybus

import (
	"context"
	"fmt"
	"sort"

	"github.com/coregx/relaybus/model"
)

// DeadLetterMonitor aggregates dead-lettered messages for operational
// visibility. It is strictly read-only: it never resolves, replays or
// deletes dead letters.
//
// This is a monitoring path that must not destabilize the system it
// watches, so read failures degrade to empty results (logged) instead of
// propagating.
type DeadLetterMonitor struct {
	reader DeadLetterReader
	logger Logger
}

// NewDeadLetterMonitor creates a monitor over the given reader.
func NewDeadLetterMonitor(reader DeadLetterReader, logger Logger) (*DeadLetterMonitor, error) {
	if reader == nil {
		return nil, NewError(ErrCodeConfiguration, "DeadLetterReader is required")
	}
	if logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}
	return &DeadLetterMonitor{reader: reader, logger: logger}, nil
}

// Count returns the total number of dead-lettered messages, optionally
// filtered by interface (empty string = all). Returns 0 on read failure.
func (m *DeadLetterMonitor) Count(ctx context.Context, interfaceName string) int {
	messages, err := m.read(ctx, interfaceName)
	if err != nil {
		return 0
	}
	return len(messages)
}

// Recent returns the most recent dead letters ordered by processing or
// creation time descending, at most count entries. Returns empty slice on
// read failure.
func (m *DeadLetterMonitor) Recent(ctx context.Context, count int, interfaceName string) []model.DeadLetterMessage {
	if count <= 0 {
		return []model.DeadLetterMessage{}
	}

	messages, err := m.read(ctx, interfaceName)
	if err != nil {
		return []model.DeadLetterMessage{}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].EffectiveTime().After(messages[j].EffectiveTime())
	})

	if len(messages) > count {
		messages = messages[:count]
	}
	return messages
}

// StatsByInterface returns per-interface aggregate statistics: message
// count, oldest and newest timestamps, and the five most frequent error
// messages with counts.
func (m *DeadLetterMonitor) StatsByInterface(ctx context.Context) map[string]model.DeadLetterStats {
	stats := make(map[string]model.DeadLetterStats)

	messages, err := m.read(ctx, "")
	if err != nil {
		return stats
	}

	errorCounts := make(map[string]map[string]int)
	for i := range messages {
		msg := messages[i]
		at := msg.EffectiveTime()

		s, ok := stats[msg.InterfaceName]
		if !ok {
			s = model.DeadLetterStats{
				InterfaceName: msg.InterfaceName,
				OldestAt:      at,
				NewestAt:      at,
			}
			errorCounts[msg.InterfaceName] = make(map[string]int)
		}

		s.Count++
		if at.Before(s.OldestAt) {
			s.OldestAt = at
		}
		if at.After(s.NewestAt) {
			s.NewestAt = at
		}
		stats[msg.InterfaceName] = s

		if msg.ErrorMessage != "" {
			errorCounts[msg.InterfaceName][msg.ErrorMessage]++
		}
	}

	for interfaceName, counts := range errorCounts {
		s := stats[interfaceName]
		s.TopErrors = topErrors(counts, 5)
		stats[interfaceName] = s
	}

	return stats
}

// IsThresholdExceeded reports whether the dead-letter count for the given
// interface (empty string = all) meets or exceeds threshold. Convenience
// check for alerting.
func (m *DeadLetterMonitor) IsThresholdExceeded(ctx context.Context, threshold int, interfaceName string) bool {
	if threshold <= 0 {
		return false
	}
	return m.Count(ctx, interfaceName) >= threshold
}

// read fetches dead letters, logging and normalizing failures.
func (m *DeadLetterMonitor) read(ctx context.Context, interfaceName string) ([]model.DeadLetterMessage, error) {
	messages, err := m.reader.ReadDeadLetterMessages(ctx, interfaceName)
	if err != nil {
		if IsNoData(err) {
			return []model.DeadLetterMessage{}, nil
		}
		m.logger.Errorf("Failed to read dead letters (interface=%q): %v", interfaceName, err)
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	return messages, nil
}

// topErrors returns the n most frequent error messages, most frequent
// first; ties break alphabetically for stable output.
func topErrors(counts map[string]int, n int) []model.ErrorFrequency {
	frequencies := make([]model.ErrorFrequency, 0, len(counts))
	for message, count := range counts {
		frequencies = append(frequencies, model.ErrorFrequency{Message: message, Count: count})
	}

	sort.Slice(frequencies, func(i, j int) bool {
		if frequencies[i].Count != frequencies[j].Count {
			return frequencies[i].Count > frequencies[j].Count
		}
		return frequencies[i].Message < frequencies[j].Message
	})

	if len(frequencies) > n {
		frequencies = frequencies[:n]
	}
	return frequencies
}
