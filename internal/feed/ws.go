package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quantbrain/internal/domain"
	"quantbrain/internal/observability"
)

const (
	feedWS = "ws"

	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 30 * time.Second
	pingInterval            = 15 * time.Second
	writeTimeout            = 5 * time.Second
	maxMessageBytes         = 1 << 20
)

// Message types on the bar stream.
const (
	MessageBar = "bar"
	MessageEnd = "end"
)

// BarMessage is one frame of the bar stream. Type defaults to "bar".
// Signal keeps its JSON text so integer-valued signals stay integral.
type BarMessage struct {
	Type     string      `json:"type,omitempty"`
	SeriesID string      `json:"series_id,omitempty"`
	Ts       int64       `json:"ts"` // epoch ms
	Price    float64     `json:"price"`
	Signal   json.Number `json:"signal"`
}

// WSSource collects bars from a WebSocket endpoint until the server sends an
// "end" message, closes normally, or the bar limit is reached.
type WSSource struct {
	url         string
	seriesID    string
	log         zerolog.Logger
	metrics     *observability.Metrics
	maxBars     int
	readTimeout time.Duration
}

// WSOption configures a WSSource.
type WSOption func(*WSSource)

// WithMaxBars stops collection after n bars. Zero means unlimited.
func WithMaxBars(n int) WSOption {
	return func(s *WSSource) {
		if n > 0 {
			s.maxBars = n
		}
	}
}

// WithReadTimeout overrides the idle read deadline.
func WithReadTimeout(d time.Duration) WSOption {
	return func(s *WSSource) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithMetrics records decoded bars and read errors on m.
func WithMetrics(m *observability.Metrics) WSOption {
	return func(s *WSSource) {
		s.metrics = m
	}
}

// NewWSSource creates a source reading from url. Messages without a series_id
// are assigned seriesID; messages for other series are skipped.
func NewWSSource(url, seriesID string, log zerolog.Logger, opts ...WSOption) *WSSource {
	s := &WSSource{
		url:         url,
		seriesID:    seriesID,
		log:         log.With().Str("feed", feedWS).Logger(),
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collect dials the endpoint and reads bars in arrival order.
func (s *WSSource) Collect(ctx context.Context) ([]*domain.Bar, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.metrics.RecordFeedError(feedWS)
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	s.log.Info().Str("url", s.url).Str("series_id", s.seriesID).Msg("connected bar feed")

	conn.SetReadLimit(maxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go s.keepAlive(pingCtx, conn)

	// unblock ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var bars []*domain.Bar
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			s.metrics.RecordFeedError(feedWS)
			return nil, fmt.Errorf("read bar stream: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		var msg BarMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn().Err(err).Msg("failed to decode bar message")
			continue
		}
		if msg.Type == MessageEnd {
			break
		}
		if msg.Type != "" && msg.Type != MessageBar {
			continue
		}

		bar, err := s.toBar(msg)
		if err != nil {
			s.log.Warn().Err(err).Int64("ts", msg.Ts).Msg("invalid bar message")
			continue
		}
		if bar == nil {
			continue
		}
		bars = append(bars, bar)
		if s.maxBars > 0 && len(bars) >= s.maxBars {
			break
		}
	}

	s.closeGracefully(conn)
	s.metrics.RecordFeedBars(feedWS, len(bars))
	s.log.Info().Int("bars", len(bars)).Msg("bar feed complete")
	return bars, nil
}

// toBar converts a message, returning nil for bars of other series.
func (s *WSSource) toBar(msg BarMessage) (*domain.Bar, error) {
	if s.seriesID != "" && msg.SeriesID != "" && msg.SeriesID != s.seriesID {
		return nil, nil
	}
	return msg.Bar(s.seriesID)
}

// Bar converts the message into a domain bar. defaultSeries is used when the
// message carries no series_id.
func (m BarMessage) Bar(defaultSeries string) (*domain.Bar, error) {
	seriesID := m.SeriesID
	if seriesID == "" {
		seriesID = defaultSeries
	}
	if m.Ts <= 0 {
		return nil, errors.New("missing timestamp")
	}

	signal, integral, err := parseSignal(m.Signal)
	if err != nil {
		return nil, err
	}

	return &domain.Bar{
		SeriesID:       seriesID,
		TimestampMs:    m.Ts,
		Price:          m.Price,
		Signal:         signal,
		SignalIntegral: integral,
	}, nil
}

// parseSignal reads a JSON number. Empty (null or absent) is NaN.
func parseSignal(n json.Number) (float64, bool, error) {
	text := n.String()
	if text == "" {
		return math.NaN(), false, nil
	}
	v, err := n.Float64()
	if err != nil {
		return 0, false, fmt.Errorf("signal %q: %w", text, err)
	}
	return v, !strings.ContainsAny(text, ".eE"), nil
}

func (s *WSSource) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.log.Debug().Err(err).Msg("bar feed ping failed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *WSSource) closeGracefully(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
