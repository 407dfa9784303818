package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/block-physics/internal/auth"
	"github.com/annel0/block-physics/internal/collapse"
	"github.com/annel0/block-physics/internal/eventbus"
	"github.com/annel0/block-physics/internal/logging"
	"github.com/annel0/block-physics/internal/middleware"
	"github.com/annel0/block-physics/internal/registry"
)

// Registry реестр, который умеет отдавать сводку и списки имён
type Registry interface {
	registry.Lookup
	Stats() registry.Stats
	Names(kind registry.Kind) []string
	TagsOf(block registry.BlockRef) []registry.TagRef
}

// RestServer административный REST API сервиса опций
type RestServer struct {
	router   *gin.Engine
	server   *http.Server
	service  *collapse.Service
	registry Registry
	bus      eventbus.EventBus
	tokens   *auth.TokenIssuer
	metrics  *ServerMetrics
	log      *logging.Logger
	port     string
}

// Config содержит зависимости REST сервера
type Config struct {
	Port     string            // адрес для запуска сервера, ":8089"
	Service  *collapse.Service // обязателен
	Registry Registry          // обязателен
	Bus      eventbus.EventBus // без шины POST /reload?broadcast недоступен
	Tokens   *auth.TokenIssuer // без издателя POST /reload открыт
	Logger   *logging.Logger

	// Registerer и Gatherer для HTTP-метрик и /metrics; если nil, метрики не собираются
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// GenericResponse общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создаёт сервер и настраивает маршруты
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8089"
	}
	if config.Logger == nil {
		config.Logger = logging.NewWriterLogger("api", os.Stdout, logging.INFO)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware("collapse_api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	if config.Registerer != nil && config.Gatherer != nil {
		promMw := middleware.NewPrometheusMiddleware("collapse_api", config.Registerer)
		router.Use(promMw.Handler())
		promMw.RegisterMetricsEndpoint(router, config.Gatherer)
	}

	rs := &RestServer{
		router:   router,
		service:  config.Service,
		registry: config.Registry,
		bus:      config.Bus,
		tokens:   config.Tokens,
		metrics:  NewServerMetrics(),
		log:      config.Logger,
		port:     config.Port,
	}
	rs.server = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	rs.setupRoutes()
	return rs
}

// Handler http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler { return rs.router }

func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	v1 := rs.router.Group("/api/v1")
	{
		v1.GET("/snapshot", rs.handleSnapshot)
		v1.GET("/report", rs.handleReport)
		v1.GET("/options", rs.handleOptions)
		v1.GET("/blocks/:ns/*path", rs.handleBlock)
		v1.GET("/tags/:ns/*path", rs.handleTag)
		v1.GET("/dimensions/:ns/*path", rs.handleDimension)
		v1.GET("/registry", rs.handleRegistry)
		v1.GET("/registry/:kind", rs.handleRegistryNames)
		v1.GET("/stats", rs.handleStats)

		admin := v1.Group("/")
		admin.Use(rs.adminMiddleware())
		{
			admin.POST("/reload", rs.handleReload)
		}
	}
}

// handleHealth 200, когда снимок опубликован, иначе 503
func (rs *RestServer) handleHealth(c *gin.Context) {
	snap := rs.service.Holder().Current()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading", "time": time.Now().Unix()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"snapshot_id": snap.ID(),
		"loaded_at":   snap.LoadedAt().Unix(),
		"time":        time.Now().Unix(),
	})
}

// current текущий снимок; при его отсутствии отвечает 503
func (rs *RestServer) current(c *gin.Context) (*collapse.Snapshot, bool) {
	snap := rs.service.Holder().Current()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Снимок ещё не загружен"})
		return nil, false
	}
	return snap, true
}

func (rs *RestServer) handleSnapshot(c *gin.Context) {
	snap, ok := rs.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Текущий снимок", Data: snap.View()})
}

func (rs *RestServer) handleReport(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Отчёт последней загрузки", Data: rs.service.LastReport()})
}

// OptionInfo описание опции для API
type OptionInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Default any    `json:"default"`
	Range   string `json:"range,omitempty"`
	Comment string `json:"comment"`
}

func (rs *RestServer) handleOptions(c *gin.Context) {
	decls := rs.service.Loader().Spec().Options()
	out := make([]OptionInfo, 0, len(decls))
	for _, d := range decls {
		out = append(out, OptionInfo{
			Name:    d.Name(),
			Kind:    string(d.Kind()),
			Default: d.DefaultValue(),
			Range:   d.RangeText(),
			Comment: d.Comment(),
		})
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Объявленные опции", Data: out})
}

// identifierParam собирает идентификатор из :ns и *path
func identifierParam(c *gin.Context) string {
	return c.Param("ns") + registry.Separator + strings.TrimPrefix(c.Param("path"), "/")
}

// BlockInfo ответ на запрос о блоке
type BlockInfo struct {
	Block          string   `json:"block"`
	ID             uint16   `json:"id"`
	Indestructible bool     `json:"indestructible"`
	Override       *int     `json:"override,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

func (rs *RestServer) handleBlock(c *gin.Context) {
	snap, ok := rs.current(c)
	if !ok {
		return
	}
	id, err := registry.ParseIdentifier(identifierParam(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	block, ok := registry.ResolveBlock(rs.registry, id)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Блок не найден: " + id.String()})
		return
	}

	info := BlockInfo{Block: block.String(), ID: uint16(block.ID()), Indestructible: snap.IsIndestructible(block)}
	if v, ok := snap.BlockOverride(block); ok {
		info.Override = &v
	}
	for _, t := range rs.registry.TagsOf(block) {
		info.Tags = append(info.Tags, t.Identifier().String())
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок", Data: info})
}

// TagInfo ответ на запрос о теге
type TagInfo struct {
	Tag      string `json:"tag"`
	Override *int   `json:"override,omitempty"`
}

func (rs *RestServer) handleTag(c *gin.Context) {
	snap, ok := rs.current(c)
	if !ok {
		return
	}
	id, err := registry.ParseIdentifier(identifierParam(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	tag, ok := registry.ResolveTag(rs.registry, id)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Тег не найден: " + id.String()})
		return
	}

	info := TagInfo{Tag: tag.Identifier().String()}
	if v, ok := snap.TagOverride(tag); ok {
		info.Override = &v
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Тег", Data: info})
}

// DimensionInfo ответ на запрос об измерении
type DimensionInfo struct {
	Dimension string `json:"dimension"`
	Allowed   bool   `json:"allowed"`
	Known     bool   `json:"known"`
}

func (rs *RestServer) handleDimension(c *gin.Context) {
	snap, ok := rs.current(c)
	if !ok {
		return
	}
	id := registry.SplitIdentifier(identifierParam(c))
	dim := registry.NewDimensionRef(id)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Измерение", Data: DimensionInfo{
		Dimension: dim.String(),
		Allowed:   snap.IsDimensionAllowed(dim),
		Known:     rs.registry.Exists(registry.KindDimension, id),
	}})
}

func (rs *RestServer) handleRegistry(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Реестр", Data: rs.registry.Stats()})
}

func (rs *RestServer) handleRegistryNames(c *gin.Context) {
	var kind registry.Kind
	switch c.Param("kind") {
	case "blocks":
		kind = registry.KindBlock
	case "tags":
		kind = registry.KindTag
	case "dimensions":
		kind = registry.KindDimension
	default:
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Неизвестный вид записей: " + c.Param("kind")})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Записи реестра", Data: rs.registry.Names(kind)})
}

// handleStats метрики процесса, шины и реестра
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := map[string]interface{}{
		"server":         rs.metrics.Process(),
		"memory_details": rs.metrics.GetDetailedMemoryStats(),
		"registry":       rs.registry.Stats(),
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}
	if snap := rs.service.Holder().Current(); snap != nil {
		stats["snapshot"] = map[string]interface{}{
			"id":      snap.ID(),
			"source":  snap.Source(),
			"entries": snap.Entries(),
		}
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика получена", Data: stats})
}

// handleReload перезагружает опции на этом узле; с ?broadcast=true рассылает
// запрос перезагрузки всем узлам через шину.
func (rs *RestServer) handleReload(c *gin.Context) {
	if c.Query("broadcast") == "true" {
		rs.broadcastReload(c)
		return
	}

	snap, err := rs.service.Reload(c.Request.Context(), collapse.TriggerAPI)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка загрузки: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Опции перезагружены",
		Data: map[string]interface{}{
			"snapshot": snap.View(),
			"report":   rs.service.LastReport(),
		},
	})
}

func (rs *RestServer) broadcastReload(c *gin.Context) {
	if rs.bus == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Шина событий не настроена"})
		return
	}
	operator := c.GetString(operatorKey)
	if operator == "" {
		operator = "api"
	}
	ev, err := eventbus.NewEnvelope(eventbus.EventReloadRequested, operator, nil)
	if err == nil {
		ev.CorrelationID = c.GetString(middleware.TraceIDKey)
		err = rs.bus.Publish(c.Request.Context(), ev)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка публикации: " + err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Запрос перезагрузки разослан", Data: gin.H{"event_id": ev.ID}})
}

// Start запускает REST сервер; блокирует до остановки
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop плавно останавливает сервер. После Stop вызов Start сразу возвращает nil.
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
