package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/tracker/pkg/event"
	"github.com/nao1215/tracker/pkg/httpclient"
)

// StreamPath はイベントストリームのパス。
const StreamPath = "/api/v1/realtime/stream"

// GroupPath は接続をプロジェクトのグループに参加・離脱させるパスを返す。
func GroupPath(connectionID, projectID string) string {
	return fmt.Sprintf("/api/v1/realtime/connections/%s/projects/%s",
		url.PathEscape(connectionID), url.PathEscape(projectID))
}

// DefaultRetryDelays は接続が切れた後の再接続の待ち時間。
// 使い切ると再接続を諦めてDisconnectedになる。
var DefaultRetryDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// State はクライアントの接続状態。
type State int

const (
	// StateDisconnected は未接続。
	StateDisconnected State = iota
	// StateConnecting は最初の接続中。
	StateConnecting
	// StateConnected は接続済み。
	StateConnected
	// StateReconnecting は接続が切れた後の再接続中。
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handler は受信したイベントを処理する。イベントを読むゴルーチンから順に呼ばれる。
type Handler func(ev *event.Event)

// ClientOption はClientの設定を変更する。
type ClientOption func(*Client)

// WithRetryDelays は再接続の待ち時間を差し替える。
func WithRetryDelays(delays ...time.Duration) ClientOption {
	return func(c *Client) { c.delays = delays }
}

// WithLogger はロガーを差し替える。
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient はストリームとAPI呼び出しに使うHTTPクライアントを差し替える。
// ストリームは長時間読み続けるため、Timeoutを設定したクライアントは渡さないこと。
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// Client はイベントストリームを購読し、切断時に自動で再接続するクライアント。
//
// 状態は Disconnected → Connecting → Connected → Reconnecting → Connected | Disconnected と遷移する。
// 再接続のたびに、JoinProjectで参加したプロジェクトのグループへ参加し直す。
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	api        *httpclient.Client
	delays     []time.Duration
	logger     *slog.Logger

	mu            sync.Mutex
	state         State
	connectionID  string
	projects      map[string]struct{}
	handlers      map[event.Type][]Handler
	stateHandlers []func(State)
	waiters       []chan error
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewClient は新しいClientを生成する。tokenはBearerトークンとして送る。
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		delays:     DefaultRetryDelays,
		logger:     slog.Default(),
		projects:   make(map[string]struct{}),
		handlers:   make(map[event.Type][]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.api = httpclient.New(c.baseURL, httpclient.WithToken(token), httpclient.WithHTTPClient(c.httpClient))
	return c
}

// On はイベント種別ごとのハンドラを登録する。
func (c *Client) On(t event.Type, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = append(c.handlers[t], h)
}

// OnStateChange は状態遷移のたびに呼ばれる関数を登録する。
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, fn)
}

// State は現在の状態を返す。
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionID はサーバーが払い出した現在の接続IDを返す。未接続の場合は空文字列。
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Connect は接続を開始し、接続できるまで待つ。
// 接続済みの場合は何もしない。接続処理中の場合は新たに接続せず、その結果を待つ。
// 最初の接続に失敗した場合はエラーを返し、Disconnectedに戻る。
// ctxは待ち時間だけを制限し、確立した接続はCloseまで維持される。
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	w := make(chan error, 1)
	c.waiters = append(c.waiters, w)
	if c.cancel == nil {
		runCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.done = make(chan struct{})
		go c.run(runCtx, c.done)
	}
	c.mu.Unlock()

	select {
	case err := <-w:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close は接続を閉じ、再接続を止める。何度呼んでもよい。
func (c *Client) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// JoinProject はプロジェクトのグループに参加する。
// 参加したプロジェクトは記録され、再接続後にも参加し直す。未接続の場合は記録だけ行う。
func (c *Client) JoinProject(ctx context.Context, projectID string) error {
	c.mu.Lock()
	c.projects[projectID] = struct{}{}
	connectionID := c.connectionID
	c.mu.Unlock()
	if connectionID == "" {
		return nil
	}
	if err := c.api.PostJSON(ctx, GroupPath(connectionID, projectID), nil, nil); err != nil {
		return fmt.Errorf("プロジェクト %s のグループへの参加に失敗: %w", projectID, err)
	}
	return nil
}

// LeaveProject はプロジェクトのグループから離脱し、記録からも外す。
func (c *Client) LeaveProject(ctx context.Context, projectID string) error {
	c.mu.Lock()
	delete(c.projects, projectID)
	connectionID := c.connectionID
	c.mu.Unlock()
	if connectionID == "" {
		return nil
	}
	if err := c.api.Delete(ctx, GroupPath(connectionID, projectID)); err != nil {
		return fmt.Errorf("プロジェクト %s のグループからの離脱に失敗: %w", projectID, err)
	}
	return nil
}

// run は接続を維持するループ。状態の遷移はこのゴルーチンだけが行う。
func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	c.setState(StateConnecting)

	established := false
	attempt := 0
	for {
		connected, err := c.stream(ctx)
		if ctx.Err() != nil {
			c.finish(ctx.Err())
			return
		}
		if connected {
			established = true
			attempt = 0
		}
		if !established {
			c.finish(err)
			return
		}
		if attempt >= len(c.delays) {
			c.logger.Warn("再接続を諦めました", "error", err)
			c.finish(fmt.Errorf("再接続に失敗: %w", err))
			return
		}

		c.setState(StateReconnecting)
		delay := c.delays[attempt]
		attempt++
		c.logger.Info("リアルタイム接続が切れたため再接続します", "attempt", attempt, "delay", delay, "error", err)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				c.finish(ctx.Err())
				return
			case <-timer.C:
			}
		}
	}
}

// stream はストリームを1回開いて読み切る。connectedイベントを受信したかどうかを返す。
func (c *Client) stream(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+StreamPath, nil)
	if err != nil {
		return false, fmt.Errorf("ストリームのリクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("ストリームへの接続に失敗: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	connected := false
	err = readEvents(resp.Body, func(ev *event.Event) {
		if ev.Type == event.TypeConnected {
			data, err := event.DecodeData[event.ConnectedData](ev)
			if err != nil || data.ConnectionID == "" {
				c.logger.Warn("connectedイベントが不正です", "error", err)
				return
			}
			connected = true
			c.established(ctx, data.ConnectionID)
		}
		c.dispatch(ev)
	})

	c.mu.Lock()
	c.connectionID = ""
	c.mu.Unlock()
	return connected, err
}

// established は接続IDを記録し、プロジェクトのグループに参加し直してからConnectedにする。
func (c *Client) established(ctx context.Context, connectionID string) {
	c.mu.Lock()
	c.connectionID = connectionID
	projects := make([]string, 0, len(c.projects))
	for id := range c.projects {
		projects = append(projects, id)
	}
	c.mu.Unlock()

	for _, projectID := range projects {
		joinCtx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
		err := c.api.PostJSON(joinCtx, GroupPath(connectionID, projectID), nil, nil)
		cancel()
		if err != nil {
			c.logger.Warn("プロジェクトのグループへの再参加に失敗", "project_id", projectID, "error", err)
		}
	}

	c.setState(StateConnected)
	c.release(nil)
}

// finish はDisconnectedにして、待っているConnectにerrを返す。
func (c *Client) finish(err error) {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.connectionID = ""
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.setState(StateDisconnected)
	c.release(err)
}

func (c *Client) release(err error) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		w <- err
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	handlers := slices.Clone(c.stateHandlers)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(s)
	}
}

func (c *Client) dispatch(ev *event.Event) {
	c.mu.Lock()
	handlers := slices.Clone(c.handlers[ev.Type])
	c.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// readEvents はServer-Sent Eventsを読み、data行をイベントの封筒としてfnに渡す。
// ストリームが終わるとio.EOFを返す。
func readEvents(r io.Reader, fn func(*event.Event)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if data.Len() > 0 {
				var ev event.Event
				if err := json.Unmarshal([]byte(data.String()), &ev); err == nil {
					if ev.Type == "" {
						ev.Type = event.Type(name)
					}
					fn(&ev)
				}
			}
			name = ""
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
