// Package httpapi exposes every cache strategy over HTTP, one route per
// strategy name, plus a small admin surface for seeding and invalidating
// products. It is the external collaborator that cmd/demo serves and the
// load generator talks to.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cache "github.com/Hossein-Roshandel/stampedeguard"
	"github.com/Hossein-Roshandel/stampedeguard/internal/product"
)

// Server wires a cache.Engine and a product.Repository behind Gin routes.
type Server struct {
	engine *cache.Engine[product.Product]
	repo   product.Repository
	log    *zap.Logger
}

// NewServer constructs the HTTP surface. log may be nil.
func NewServer(engine *cache.Engine[product.Product], repo product.Repository, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: engine, repo: repo, log: log}
}

// Register attaches every route to r.
func (s *Server) Register(r gin.IRouter) {
	for _, name := range s.engine.Names() {
		strategyName := name
		r.GET("/"+strategyName+"/products/:id", s.getProduct(strategyName))
	}

	admin := r.Group("/admin")
	admin.POST("/products", s.seedProduct)
	admin.DELETE("/cache/:strategy/:id", s.invalidate)
}

type productResponse struct {
	Product   product.Product `json:"product"`
	FromCache bool            `json:"from_cache"`
	Stale     bool            `json:"stale"`
}

func (s *Server) getProduct(strategyName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		strategy, ok := s.engine.ByName(strategyName)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown strategy"})
			return
		}

		id := c.Param("id")
		loader := func(ctx context.Context) (product.Product, bool, error) {
			p, err := s.repo.FindByID(ctx, id)
			if errors.Is(err, product.ErrNotFound) {
				return product.Product{}, false, nil
			}
			if err != nil {
				return product.Product{}, false, err
			}
			return p, true, nil
		}

		res, err := strategy.GetOrLoad(c.Request.Context(), id, loader)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if !res.Found {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusOK, productResponse{Product: res.Value, FromCache: res.FromCache, Stale: res.Stale})
	}
}

func (s *Server) seedProduct(c *gin.Context) {
	var p product.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if p.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if err := s.repo.Upsert(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "seeded"})
}

func (s *Server) invalidate(c *gin.Context) {
	strategyName := c.Param("strategy")
	id := c.Param("id")
	strategy, ok := s.engine.ByName(strategyName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown strategy"})
		return
	}
	if err := strategy.Invalidate(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}

func (s *Server) respondError(c *gin.Context, err error) {
	if errors.Is(err, cache.ErrLockUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache lock unavailable"})
		return
	}
	if errors.Is(err, product.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	s.log.Warn("httpapi: request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
