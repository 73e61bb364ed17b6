package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// SessionTime holds creation/update timestamps in epoch milliseconds.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// ShareInfo describes a shared session link.
type ShareInfo struct {
	URL string `json:"url"`
}

// Session is one conversation scoped to a working directory. The directory
// can be a project root or a worktree path.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Directory string      `json:"directory"`
	ParentID  string      `json:"parentID,omitempty"`
	ProjectID string      `json:"projectID"`
	Version   string      `json:"version"`
	Time      SessionTime `json:"time"`
	Summary   string      `json:"summary,omitempty"`
	Share     *ShareInfo  `json:"share,omitempty"`
}

// ListSessions returns sessions known to the server. When directory is
// non-empty the listing is scoped to it; otherwise all sessions are
// returned.
func (c *Client) ListSessions(ctx context.Context, directory string) ([]Session, error) {
	q := url.Values{}
	if directory != "" {
		q.Set("directory", directory)
	}

	var sessions []Session
	if err := c.do(ctx, http.MethodGet, "/session", q, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSessionRequest holds the optional fields for session creation.
type CreateSessionRequest struct {
	Title    string `json:"title,omitempty"`
	ParentID string `json:"parentID,omitempty"`
}

// CreateSession creates a session in the given directory; empty falls back
// to the active directory.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest, directory string) (*Session, error) {
	var sess Session
	if err := c.do(ctx, http.MethodPost, "/session", c.directoryQuery(directory), req, &sess); err != nil {
		return nil, err
	}
	if sess.ID == "" {
		return nil, &MalformedResponseError{Endpoint: "/session", Err: fmt.Errorf("created session has no id")}
	}
	return &sess, nil
}

// DeleteSession deletes a session. The directory scopes the request to the
// session's working directory; empty falls back to the active directory.
func (c *Client) DeleteSession(ctx context.Context, sessionID, directory string) (bool, error) {
	var deleted bool
	path := "/session/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodDelete, path, c.directoryQuery(directory), nil, &deleted); err != nil {
		return false, err
	}
	return deleted, nil
}

// ShareSession enables sharing for a session and returns the updated session.
func (c *Client) ShareSession(ctx context.Context, sessionID, directory string) (*Session, error) {
	var sess Session
	path := "/session/" + url.PathEscape(sessionID) + "/share"
	if err := c.do(ctx, http.MethodPost, path, c.directoryQuery(directory), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// UnshareSession disables sharing for a session and returns the updated session.
func (c *Client) UnshareSession(ctx context.Context, sessionID, directory string) (*Session, error) {
	var sess Session
	path := "/session/" + url.PathEscape(sessionID) + "/share"
	if err := c.do(ctx, http.MethodDelete, path, c.directoryQuery(directory), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SendMessageRequest asks the server to run one turn in a session with an
// explicit provider/model/agent selection.
type SendMessageRequest struct {
	SessionID  string `json:"sessionID"`
	Text       string `json:"text"`
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
	Agent      string `json:"agent,omitempty"`
}

// SendMessage submits a user message to a session. Used by resume to re-send
// the captured message with the originally selected model configuration.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest, directory string) error {
	path := "/session/" + url.PathEscape(req.SessionID) + "/message"
	return c.do(ctx, http.MethodPost, path, c.directoryQuery(directory), req, nil)
}

// AbortSession aborts the session's in-flight turn, if any.
func (c *Client) AbortSession(ctx context.Context, sessionID, directory string) error {
	path := "/session/" + url.PathEscape(sessionID) + "/abort"
	return c.do(ctx, http.MethodPost, path, c.directoryQuery(directory), nil, nil)
}

// ResolvePath asks the server for its canonical form of a directory. The
// server may realpath or resolve symlinks differently than the client's
// string, so directory-scoped listings resolve through this first.
func (c *Client) ResolvePath(ctx context.Context, directory string) (string, error) {
	q := url.Values{}
	q.Set("directory", directory)

	var out struct {
		Directory string `json:"directory"`
	}
	if err := c.do(ctx, http.MethodGet, "/path", q, nil, &out); err != nil {
		return "", err
	}
	if out.Directory == "" {
		return "", &MalformedResponseError{Endpoint: "/path", Err: fmt.Errorf("empty directory in response")}
	}
	return out.Directory, nil
}
