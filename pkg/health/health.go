package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(New))

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Report struct {
	Status string       `json:"status"`
	Deps   []Dependency `json:"deps,omitempty"`
}

// Service exposes liveness and readiness probes. Liveness only proves the
// process answers; readiness pings each backing store.
type Service interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type service struct {
	db    *gorm.DB
	redis *redis.Client
}

type Params struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func New(p Params) Service {
	return &service{
		db:    p.DB,
		redis: p.Redis,
	}
}

func (s *service) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Report{Status: "ok"})
}

func (s *service) Readiness(c *gin.Context) {
	report := &Report{Status: "ok"}
	code := http.StatusOK

	if s.db != nil {
		dep := Dependency{Name: "database", Status: "ok"}
		if sql, err := s.db.DB(); err != nil {
			dep.Status = "down"
			dep.Message = err.Error()
		} else if err := sql.PingContext(c.Request.Context()); err != nil {
			dep.Status = "down"
			dep.Message = err.Error()
		}
		report.Deps = append(report.Deps, dep)
	}

	if s.redis != nil {
		dep := Dependency{Name: "redis", Status: "ok"}
		if err := s.redis.Ping(c.Request.Context()).Err(); err != nil {
			dep.Status = "down"
			dep.Message = err.Error()
		}
		report.Deps = append(report.Deps, dep)
	}

	for _, dep := range report.Deps {
		if dep.Status != "ok" {
			report.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, report)
}
