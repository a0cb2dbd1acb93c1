package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// transport carries browser level commands and events. Nothing sent through
// it is bound to a tab, so no tab is ever closed on its behalf.
type transport interface {
	cdp.Executor
	// Listen calls fn for every browser level event until ctx ends.
	Listen(ctx context.Context, fn func(ev any))
}

// browserTransport is the transport of a connected chromedp browser.
type browserTransport struct {
	browser *chromedp.Browser
	// ctx is the chromedp context the browser was connected with.
	ctx context.Context
}

func (t *browserTransport) Execute(ctx context.Context, method string, params, res any) error {
	return t.browser.Execute(ctx, method, params, res)
}

func (t *browserTransport) Listen(ctx context.Context, fn func(ev any)) {
	lctx, cancel := context.WithCancel(t.ctx)
	context.AfterFunc(ctx, cancel)
	chromedp.ListenBrowser(lctx, fn)
}

// detachTimeout bounds the detach sent after an evaluation, which also runs
// when the caller's context is already done.
const detachTimeout = time.Second

var messageID atomic.Int64

type sessionCommand struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type sessionReply struct {
	ID     int64 `json:"id"`
	Result struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	} `json:"result"`
	Error *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// evaluate runs expr in a page and returns its string result. It attaches a
// non-flattened session to the page, exchanges one Runtime.evaluate through
// the browser, and detaches again.
func evaluate(ctx context.Context, tr transport, id target.ID, expr string) (string, error) {
	exec := cdp.WithExecutor(ctx, tr)
	sessionID, err := target.AttachToTarget(id).WithFlatten(false).Do(exec)
	if err != nil {
		return "", fmt.Errorf("attach: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
		defer cancel()
		_ = target.DetachFromTarget().WithSessionID(sessionID).Do(cdp.WithExecutor(dctx, tr))
	}()

	cmd := sessionCommand{
		ID:     messageID.Add(1),
		Method: "Runtime.evaluate",
		Params: map[string]any{"expression": expr, "returnByValue": true},
	}
	replies := make(chan string, 1)
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Called from the connection's read loop; must not block.
	tr.Listen(lctx, func(ev any) {
		msg, ok := ev.(*target.EventReceivedMessageFromTarget)
		if !ok || msg.SessionID != sessionID {
			return
		}
		var head struct {
			ID int64 `json:"id"`
		}
		if json.Unmarshal([]byte(msg.Message), &head) != nil || head.ID != cmd.ID {
			return
		}
		select {
		case replies <- msg.Message:
		default:
		}
	})

	data, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	if err := target.SendMessageToTarget(string(data)).WithSessionID(sessionID).Do(exec); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case raw := <-replies:
		var reply sessionReply
		if err := json.Unmarshal([]byte(raw), &reply); err != nil {
			return "", fmt.Errorf("decode reply: %w", err)
		}
		return replyString(reply)
	}
}

func replyString(reply sessionReply) (string, error) {
	if reply.Error != nil {
		return "", fmt.Errorf("evaluate: %s (%d)", reply.Error.Message, reply.Error.Code)
	}
	if ex := reply.Result.ExceptionDetails; ex != nil {
		return "", fmt.Errorf("evaluate: %s", ex.Text)
	}
	if reply.Result.Result.Type != "string" {
		return "", fmt.Errorf("evaluate: result is %s, not a string", reply.Result.Result.Type)
	}
	var out string
	if err := json.Unmarshal(reply.Result.Result.Value, &out); err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	return out, nil
}
