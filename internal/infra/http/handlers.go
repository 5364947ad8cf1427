package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"merklelog/internal/domain"
	"merklelog/internal/infra/merkle"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleAppend(c *gin.Context) {
	var req domain.AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid append request body")
		return
	}

	resp, err := s.store.Append(c.Request.Context(), req.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptStorage) {
			writeError(c, http.StatusInternalServerError, "CORRUPT_STORAGE", "corrupt leaf storage")
			return
		}
		s.logger.Error("append failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "PERSIST_FAILURE", "persist failure")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRoot(c *gin.Context) {
	resp, err := s.store.CurrentRoot(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrCorruptStorage) {
			writeError(c, http.StatusInternalServerError, "CORRUPT_STORAGE", "corrupt leaf storage")
			return
		}
		s.logger.Error("root failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "ROOT_FAILURE", "unable to compute root")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProve(c *gin.Context) {
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_INDEX", "index must be an unsigned integer")
		return
	}

	proof, err := s.store.Prove(c.Request.Context(), index)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIndexOutOfRange):
			writeError(c, http.StatusNotFound, "INDEX_OUT_OF_RANGE", "leaf index out of range")
		case errors.Is(err, domain.ErrCorruptStorage):
			writeError(c, http.StatusInternalServerError, "CORRUPT_STORAGE", "corrupt leaf storage")
		default:
			writeError(c, http.StatusInternalServerError, "PROOF_FAILURE", "unable to build proof")
		}
		return
	}
	c.JSON(http.StatusOK, proof)
}

func (s *Server) handleVerify(c *gin.Context) {
	var req domain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid verify request body")
		return
	}
	c.JSON(http.StatusOK, merkle.Verify(req))
}

func (s *Server) handleAnchors(c *gin.Context) {
	records, err := s.ledger.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to read anchors", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "ANCHOR_READ_FAILURE", "failed to read anchors")
		return
	}
	c.JSON(http.StatusOK, records)
}
