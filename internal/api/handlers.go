// Package api wires up the Gin HTTP router that drives a rename2pc.System
// one step at a time, for the multi-process demo deployment and for
// cmd/rename2pc-ctl's scenario replay.
package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"rename2pc/internal/rename2pc"
	"rename2pc/internal/roster"
	"rename2pc/internal/snapshot"
	"rename2pc/internal/transport"
)

// Handler wraps one *rename2pc.System behind a mutex. The driver itself
// assumes single-threaded, step-at-a-time use (see spec.md §5); this is
// the one place that serializes concurrent HTTP requests into individual
// steps.
//
// rosterTable/wire are both optional (nil in the default, in-memory-only
// deployment used by every test). When both are set, every successful
// send step additionally fires a real HTTP POST at the target store's
// roster address, the "-mode=http" multi-process demo described in
// SPEC_FULL.md §11.3; the in-memory Network remains the single source of
// truth for the protocol's own state either way.
type Handler struct {
	mu          sync.Mutex
	sys         *rename2pc.System
	rosterTable *roster.Roster
	wire        *transport.Transport
}

// NewHandler wraps sys with no real-transport fan-out (in-memory mode).
func NewHandler(sys *rename2pc.System) *Handler {
	return &Handler{sys: sys}
}

// NewHTTPHandler wraps sys and additionally fans every successful send
// step out over real HTTP to each target store's roster address.
func NewHTTPHandler(sys *rename2pc.System, rosterTable *roster.Roster) *Handler {
	return &Handler{sys: sys, rosterTable: rosterTable, wire: transport.New()}
}

// fanOut best-effort delivers m to store id's roster address. Failures
// are logged, never surfaced to the HTTP caller: the in-memory Network
// already holds the message, so the protocol's correctness does not
// depend on this call succeeding, only a real remote store's eventual
// handling of it does.
func (h *Handler) fanOut(id rename2pc.StoreId, path string, m rename2pc.Message) {
	if h.wire == nil || h.rosterTable == nil {
		return
	}
	addr, ok := h.rosterTable.Address(id)
	if !ok {
		return
	}
	go func() {
		if err := h.wire.Post(context.Background(), addr, path, m); err != nil {
			log.Printf("transport: fan-out to store %d (%s): %v", id, addr, err)
		}
	}()
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	txn := r.Group("/txn")
	txn.POST("/lock/:store", h.sendLockReq)
	txn.POST("/lock/:store/resp", h.storeHandleLockReq)
	txn.POST("/lock/:store/ack", h.recvLockResp)
	txn.POST("/commit", h.decideCommit)
	txn.POST("/rename/:store", h.sendRenameReq)
	txn.POST("/rename/:store/resp", h.storeHandleRenameReq)
	txn.POST("/rename/:store/ack", h.recvRenameResp)
	txn.POST("/unlock/:store", h.sendUnlockReq)
	txn.POST("/unlock/:store/resp", h.storeHandleUnlockReq)
	txn.POST("/unlock/:store/ack", h.recvUnlockResp)
	txn.POST("/crash", h.crash)
	txn.POST("/recover", h.recover)

	net := r.Group("/net")
	net.POST("/lose", h.netLose)
	net.POST("/duplicate", h.netDuplicate)

	r.GET("/state", h.state)
	r.GET("/health", h.health)
}

func storeIdParam(c *gin.Context) (rename2pc.StoreId, bool) {
	raw, err := strconv.ParseUint(c.Param("store"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})
		return 0, false
	}
	return rename2pc.StoreId(raw), true
}

// applied reports the step's result as 200 on success, or 409 when the
// step was inapplicable in the system's current phase — a conflict with
// current state, not a malformed request.
func applied(c *gin.Context, ok bool) {
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "step inapplicable in current state"})
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) sendLockReq(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	h.mu.Lock()
	ok = h.sys.SendLockReq(id)
	txnId := h.sys.Coordinator.GetTxnId()
	h.mu.Unlock()
	if ok {
		h.fanOut(id, "/txn/lock/"+strconv.FormatUint(uint64(id), 10)+"/resp",
			rename2pc.Message{Kind: rename2pc.LockReq, Store: id, TxnId: txnId})
	}
	applied(c, ok)
}

func (h *Handler) storeHandleLockReq(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.StoreHandleLockReq(id))
}

type lockAckRequest struct {
	Success bool `json:"success"`
}

func (h *Handler) recvLockResp(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	var body lockAckRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if body.Success {
		applied(c, h.sys.CoordRecvLockRespSuccess(id))
	} else {
		applied(c, h.sys.CoordRecvLockRespFailure(id))
	}
}

func (h *Handler) decideCommit(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.DecideCommit())
}

func (h *Handler) sendRenameReq(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	h.mu.Lock()
	ok = h.sys.SendRenameReq(id)
	txnId := h.sys.Coordinator.GetTxnId()
	h.mu.Unlock()
	if ok {
		h.fanOut(id, "/txn/rename/"+strconv.FormatUint(uint64(id), 10)+"/resp",
			rename2pc.Message{Kind: rename2pc.RenameReq, Store: id, TxnId: txnId})
	}
	applied(c, ok)
}

func (h *Handler) storeHandleRenameReq(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.StoreHandleRenameReq(id))
}

func (h *Handler) recvRenameResp(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.CoordRecvRenameResp(id))
}

func (h *Handler) sendUnlockReq(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	h.mu.Lock()
	ok = h.sys.SendUnlockReq(id)
	txnId := h.sys.Coordinator.GetTxnId()
	h.mu.Unlock()
	if ok {
		h.fanOut(id, "/txn/unlock/"+strconv.FormatUint(uint64(id), 10)+"/resp",
			rename2pc.Message{Kind: rename2pc.UnlockReq, Store: id, TxnId: txnId})
	}
	applied(c, ok)
}

func (h *Handler) storeHandleUnlockReq(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.StoreHandleUnlockReq(id))
}

func (h *Handler) recvUnlockResp(c *gin.Context) {
	id, ok := storeIdParam(c)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.CoordRecvUnlockResp(id))
}

func (h *Handler) crash(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.Crash())
}

func (h *Handler) recover(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.Recover())
}

func (h *Handler) netLose(c *gin.Context) {
	var m rename2pc.Message
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.NetLose(m))
}

func (h *Handler) netDuplicate(c *gin.Context) {
	var m rename2pc.Message
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	applied(c, h.sys.NetDuplicate(m))
}

func (h *Handler) state(c *gin.Context) {
	h.mu.Lock()
	snap := snapshot.Of(h.sys)
	h.mu.Unlock()
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
