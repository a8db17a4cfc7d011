package wsbridge

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/artifact"
	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/form"
	rendertemplate "github.com/goliatone/go-formembed/pkg/render/template"
	gotemplate "github.com/goliatone/go-formembed/pkg/render/template/gotemplate"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// TemplatesFS exposes the builder host page template.
func TemplatesFS() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return embeddedTemplates
	}
	return sub
}

const pageTemplate = "builder.tmpl"

// Bridge hands out builder instances backed by connected browser pages.
type Bridge struct {
	service   artifact.Service
	templates rendertemplate.TemplateRenderer
	upgrader  websocket.Upgrader
	logger    *zap.Logger

	mu      sync.Mutex
	conns   map[builder.MountRef]*pageConn
	waiters map[builder.MountRef][]chan *pageConn
}

var _ builder.Editor = (*Bridge)(nil)

// Option customises a Bridge.
type Option func(*Bridge)

// WithService sets where the builder page loads the form.io assets from.
func WithService(service artifact.Service) Option {
	return func(b *Bridge) {
		b.service = service
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithTemplateRenderer replaces the renderer used for the host page.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(b *Bridge) {
		b.templates = renderer
	}
}

// WithCheckOrigin overrides the WebSocket origin check.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(b *Bridge) {
		b.upgrader.CheckOrigin = check
	}
}

// New creates a Bridge.
func New(options ...Option) (*Bridge, error) {
	b := &Bridge{
		service: artifact.DefaultService(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger:  zap.NewNop(),
		conns:   make(map[builder.MountRef]*pageConn),
		waiters: make(map[builder.MountRef][]chan *pageConn),
	}
	for _, opt := range options {
		if opt != nil {
			opt(b)
		}
	}
	if b.templates == nil {
		engine, err := gotemplate.New(
			gotemplate.WithName("formembed-builder"),
			gotemplate.WithFS(TemplatesFS()),
		)
		if err != nil {
			return nil, fmt.Errorf("wsbridge: configure template renderer: %w", err)
		}
		b.templates = engine
	}
	return b, nil
}

// Register mounts the host page and socket routes:
// GET {prefix}/:mount and GET {prefix}/:mount/ws.
func (b *Bridge) Register(r gin.IRoutes, prefix string) {
	prefix = "/" + strings.Trim(prefix, "/")
	r.GET(prefix+"/:mount", b.handlePage(prefix))
	r.GET(prefix+"/:mount/ws", b.handleSocket)
}

// Connected reports whether a page is attached to mount.
func (b *Bridge) Connected(mount builder.MountRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	conn, ok := b.conns[mount]
	return ok && !conn.isClosed()
}

// Attach implements builder.Editor. It waits for a page to connect on mount,
// seeds it and blocks until the page reports ready or an error.
func (b *Bridge) Attach(ctx context.Context, mount builder.MountRef, seed form.Schema, opts builder.AttachOptions) (builder.Instance, error) {
	conn, err := b.awaitConn(ctx, mount)
	if err != nil {
		return nil, err
	}

	ready := make(chan readyResult, 1)
	if err := conn.beginAttach(ready); err != nil {
		return nil, err
	}
	options := opts
	if err := conn.send(Message{Type: TypeSeed, Schema: seed, Options: &options}); err != nil {
		conn.cancelAttach(ready)
		return nil, err
	}

	select {
	case result := <-ready:
		if result.err != nil {
			return nil, result.err
		}
		schema := result.schema
		if schema.IsZero() {
			schema = seed
		}
		inst := newInstance(conn, schema)
		if !conn.bind(inst) {
			return nil, ErrConnectionClosed
		}
		b.logger.Debug("builder page ready", zap.String("mount", string(mount)))
		return inst, nil
	case <-ctx.Done():
		conn.cancelAttach(ready)
		if !conn.isClosed() {
			_ = conn.send(Message{Type: TypeDestroy})
		}
		return nil, ctx.Err()
	}
}

func (b *Bridge) awaitConn(ctx context.Context, mount builder.MountRef) (*pageConn, error) {
	b.mu.Lock()
	if conn, ok := b.conns[mount]; ok && !conn.isClosed() {
		b.mu.Unlock()
		return conn, nil
	}
	wait := make(chan *pageConn, 1)
	b.waiters[mount] = append(b.waiters[mount], wait)
	b.mu.Unlock()

	select {
	case conn := <-wait:
		return conn, nil
	case <-ctx.Done():
		b.dropWaiter(mount, wait)
		return nil, ctx.Err()
	}
}

func (b *Bridge) dropWaiter(mount builder.MountRef, wait chan *pageConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	waiters := b.waiters[mount]
	for i, w := range waiters {
		if w == wait {
			b.waiters[mount] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(b.waiters[mount]) == 0 {
		delete(b.waiters, mount)
	}
}

func (b *Bridge) register(conn *pageConn) {
	b.mu.Lock()
	previous := b.conns[conn.mount]
	b.conns[conn.mount] = conn
	waiters := b.waiters[conn.mount]
	delete(b.waiters, conn.mount)
	b.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	for _, wait := range waiters {
		wait <- conn
	}
}

func (b *Bridge) unregister(conn *pageConn) {
	b.mu.Lock()
	if b.conns[conn.mount] == conn {
		delete(b.conns, conn.mount)
	}
	b.mu.Unlock()
	conn.close()
}

func (b *Bridge) handleSocket(c *gin.Context) {
	mount := builder.MountRef(c.Param("mount"))
	ws, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.logger.Warn("builder socket upgrade failed", zap.String("mount", string(mount)), zap.Error(err))
		return
	}

	logger := b.logger.With(zap.String("mount", string(mount)))
	conn := newPageConn(mount, ws, logger)
	b.register(conn)
	logger.Info("builder page connected")

	go conn.pingLoop()
	conn.readLoop()

	b.unregister(conn)
	logger.Info("builder page disconnected")
}

func (b *Bridge) handlePage(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mount := c.Param("mount")
		page, err := b.RenderPage(builder.MountRef(mount), prefix+"/"+mount+"/ws")
		if err != nil {
			b.logger.Error("render builder page", zap.String("mount", mount), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "builder page unavailable"})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	}
}

// RenderPage renders the builder host page for mount, connecting back to
// socketPath.
func (b *Bridge) RenderPage(mount builder.MountRef, socketPath string) (string, error) {
	if strings.TrimSpace(string(mount)) == "" {
		return "", errors.New("wsbridge: mount is required")
	}
	service := b.service
	return b.templates.RenderTemplate(pageTemplate, map[string]any{
		"mount":          string(mount),
		"stylesheet_url": service.StylesheetURL,
		"script_url":     service.ScriptURL,
		"mount_id":       "builder-" + string(mount),
		"mount_id_js":    jsString("builder-" + string(mount)),
		"socket_path_js": jsString(socketPath),
		"origin_js":      jsString(strings.TrimRight(service.Origin, "/")),
	})
}

func jsString(value string) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return `""`
	}
	return string(encoded)
}
