// Package history keeps conversation prompts inside a model's context
// window. It retrieves stored turns, decides how many recent ones fit the
// token budget and, when they do not, summarizes the older ones and
// atomically swaps the stored history for the compressed form.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codefionn/modelgate/internal/budget"
	"github.com/codefionn/modelgate/internal/llm"
	"github.com/codefionn/modelgate/internal/logger"
	"github.com/codefionn/modelgate/internal/store"
)

// SummaryMarker is the fixed query text of the synthetic summary entry. At
// most one such entry exists per conversation and it is always first.
const SummaryMarker = "__conversation_summary__"

const (
	// historyBudgetPercent reserves a fraction of the available token
	// budget for stored history, so compression triggers before the hard
	// prompt limit is hit.
	historyBudgetPercent = 85

	// separatorTokens accounts for the per-side message framing overhead.
	separatorTokens = 1

	defaultEntriesToKeep    = 5
	summarizeMaxAttempts    = 3
	defaultSummarizeBackoff = time.Second
)

// Manager owns read/replace access to a conversation's stored history for
// the duration of one request.
type Manager struct {
	store         store.Store
	counter       *budget.Counter
	summarizer    llm.Client
	isTransient   llm.TransientClassifier
	log           *logger.Logger
	entriesToKeep int
	backoffBase   time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithEntriesToKeep overrides how many recent turns survive compression
// verbatim.
func WithEntriesToKeep(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.entriesToKeep = n
		}
	}
}

// WithTransientClassifier replaces the retry predicate used during
// summarization.
func WithTransientClassifier(fn llm.TransientClassifier) Option {
	return func(m *Manager) {
		if fn != nil {
			m.isTransient = fn
		}
	}
}

// NewManager creates a history manager. The summarizer client may be nil,
// in which case overflowing history is truncated without summarization.
func NewManager(st store.Store, counter *budget.Counter, summarizer llm.Client, opts ...Option) *Manager {
	m := &Manager{
		store:         st,
		counter:       counter,
		summarizer:    summarizer,
		isTransient:   llm.IsTransientError,
		log:           logger.Global().WithPrefix("history"),
		entriesToKeep: defaultEntriesToKeep,
		backoffBase:   defaultSummarizeBackoff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Retrieve loads the stored history for one conversation, empty if absent.
func (m *Manager) Retrieve(ctx context.Context, key store.Key) ([]store.CacheEntry, error) {
	entries, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve history: %w", err)
	}
	return entries, nil
}

// entryCost estimates one turn's token footprint: query plus response plus a
// one-token separator each.
func (m *Manager) entryCost(entry store.CacheEntry) int {
	cost := m.counter.Count(entry.Query.Content) + separatorTokens
	if entry.Response != nil {
		cost += m.counter.Count(entry.Response.Content) + separatorTokens
	}
	return cost
}

// SplitByBudget walks the history from newest to oldest, keeping turns
// until the cumulative cost would exceed tokenBudget. The comparison is
// strict: a turn that exactly fills the remaining budget is kept. The
// returned suffix is in chronological order; overflowed reports whether any
// older turn was excluded.
func (m *Manager) SplitByBudget(entries []store.CacheEntry, tokenBudget int) ([]store.CacheEntry, bool) {
	if len(entries) == 0 {
		return nil, false
	}

	total := 0
	cut := len(entries)
	for i := len(entries) - 1; i >= 0; i-- {
		cost := m.entryCost(entries[i])
		if total+cost > tokenBudget {
			break
		}
		total += cost
		cut = i
	}

	kept := make([]store.CacheEntry, len(entries)-cut)
	copy(kept, entries[cut:])
	return kept, cut > 0
}

// Prepare returns a token-bounded view of the history. When the stored
// history overflows the effective budget, it is compressed and the stored
// copy is rewritten. The returned bool reports whether anything was dropped
// or summarized.
func (m *Manager) Prepare(ctx context.Context, key store.Key, entries []store.CacheEntry, availableTokens int) ([]store.CacheEntry, bool) {
	if len(entries) == 0 {
		return nil, false
	}

	effectiveBudget := availableTokens * historyBudgetPercent / 100
	kept, overflowed := m.SplitByBudget(entries, effectiveBudget)
	if !overflowed {
		return kept, false
	}

	m.log.Info("history overflows effective budget (%d tokens), compressing: total=%d kept=%d",
		effectiveBudget, len(entries), len(kept))

	compressed, err := m.Compress(ctx, entries, kept)
	if err != nil {
		m.log.Warn("history compression failed, falling back to truncated history: %v", err)
		compressed = kept
		if len(compressed) == 0 {
			// Never silently hand the model an empty conversation when
			// turns exist: keep at least the most recent one.
			compressed = entries[len(entries)-1:]
		}
	}

	return m.rewrite(ctx, key, compressed), true
}

// Compress builds the replacement history: a synthetic summary entry
// followed by the most recent turns kept verbatim.
func (m *Manager) Compress(ctx context.Context, full, kept []store.CacheEntry) ([]store.CacheEntry, error) {
	preserved := m.selectPreserved(full, kept)
	toSummarize := full[:len(full)-len(preserved)]

	if len(toSummarize) == 0 {
		return preserved, nil
	}

	summary, err := m.summarizeWithRetry(ctx, toSummarize)
	if err != nil {
		return nil, err
	}

	summaryEntry := store.CacheEntry{
		Query: store.TurnText{Content: SummaryMarker},
		Response: &store.TurnText{
			Content: summary,
			Metadata: map[string]string{
				"created_at": time.Now().UTC().Format(time.RFC3339),
				"provider":   m.summarizer.ProviderName(),
				"model":      m.summarizer.ModelName(),
			},
		},
	}

	result := make([]store.CacheEntry, 0, 1+len(preserved))
	result = append(result, summaryEntry)
	result = append(result, preserved...)
	return result, nil
}

// selectPreserved picks the most recent turns that survive compression
// verbatim: all but the single oldest of the fitting suffix when it is
// small, otherwise exactly the last entriesToKeep.
func (m *Manager) selectPreserved(full, kept []store.CacheEntry) []store.CacheEntry {
	keepCount := m.entriesToKeep
	if len(kept) <= m.entriesToKeep {
		keepCount = len(kept) - 1
	}
	if keepCount < 0 {
		keepCount = 0
	}
	if keepCount > len(full) {
		keepCount = len(full)
	}
	return full[len(full)-keepCount:]
}

func (m *Manager) summarizeWithRetry(ctx context.Context, entries []store.CacheEntry) (string, error) {
	if m.summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}

	prompt := buildSummaryPrompt(entries)

	var lastErr error
	for attempt := 1; attempt <= summarizeMaxAttempts; attempt++ {
		summary, err := m.summarizer.Complete(ctx, prompt)
		if err == nil {
			summary = strings.TrimSpace(summary)
			if summary == "" {
				return "", fmt.Errorf("summarizer returned empty summary")
			}
			return summary, nil
		}

		lastErr = err
		if !m.isTransient(err) {
			return "", fmt.Errorf("summarization failed: %w", err)
		}

		if attempt == summarizeMaxAttempts {
			break
		}

		backoff := m.backoffBase << (attempt - 1)
		m.log.Warn("transient summarization failure (attempt %d/%d), retrying in %s: %v",
			attempt, summarizeMaxAttempts, backoff, err)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("summarization failed after %d attempts: %w", summarizeMaxAttempts, lastErr)
}

// rewrite replaces the stored history by deleting the old one and
// re-appending entries one by one. A failure anywhere fails closed: the
// caller gets an empty history rather than a divergent in-memory guess.
func (m *Manager) rewrite(ctx context.Context, key store.Key, entries []store.CacheEntry) []store.CacheEntry {
	if err := m.store.Delete(ctx, key); err != nil {
		m.log.Error("history rewrite failed during delete, failing closed to empty history: %v", err)
		return nil
	}

	for i, entry := range entries {
		if err := m.store.Append(ctx, key, entry); err != nil {
			m.log.Error("history rewrite failed appending entry %d/%d, failing closed to empty history: %v",
				i+1, len(entries), err)
			return nil
		}
	}

	return entries
}

// buildSummaryPrompt renders the turns to summarize into a structured
// summarization request.
func buildSummaryPrompt(entries []store.CacheEntry) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following conversation between a user and an assistant.\n")
	sb.WriteString("Preserve decisions made, errors encountered, fixes applied, and agreed next steps.\n")
	sb.WriteString("Omit greetings and pleasantries. Be concise.\n\n")

	for _, entry := range entries {
		if entry.Query.Content == SummaryMarker && entry.Response != nil {
			sb.WriteString("Earlier summary: ")
			sb.WriteString(entry.Response.Content)
			sb.WriteString("\n")
			continue
		}

		sb.WriteString("User: ")
		sb.WriteString(entry.Query.Content)
		sb.WriteString("\n")
		if entry.Response != nil {
			sb.WriteString("Assistant: ")
			sb.WriteString(entry.Response.Content)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// ToMessages renders stored turns into the chat message list sent to the
// model. The summary entry becomes a system message.
func ToMessages(entries []store.CacheEntry) []*llm.Message {
	messages := make([]*llm.Message, 0, len(entries)*2)
	for _, entry := range entries {
		if entry.Query.Content == SummaryMarker {
			if entry.Response != nil {
				messages = append(messages, &llm.Message{
					Role:    "system",
					Content: "Summary of the earlier conversation:\n" + entry.Response.Content,
				})
			}
			continue
		}

		messages = append(messages, &llm.Message{Role: "user", Content: entry.Query.Content})
		if entry.Response != nil {
			messages = append(messages, &llm.Message{Role: "assistant", Content: entry.Response.Content})
		}
	}
	return messages
}
