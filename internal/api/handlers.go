package api

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stakerLedger/internal/ledger"
	"stakerLedger/internal/model"
	"stakerLedger/internal/pool"
)

type poolView struct {
	ID              uint64 `json:"id"`
	AssetClass      string `json:"asset_class"`
	AssetClassCode  uint16 `json:"asset_class_code"`
	AssetAddress    string `json:"asset_address"`
	AssetSubID      string `json:"asset_sub_id"`
	Transferable    bool   `json:"transferable"`
	LockupSeconds   uint64 `json:"lockup_seconds"`
	CooldownSeconds uint64 `json:"cooldown_seconds"`
	Administrator   string `json:"administrator"`
	TotalStaked     string `json:"total_staked"`
	OpenPositions   uint64 `json:"open_positions"`
}

func newPoolView(p model.Pool) poolView {
	return poolView{
		ID:              p.ID,
		AssetClass:      p.AssetClass.String(),
		AssetClassCode:  uint16(p.AssetClass),
		AssetAddress:    p.AssetAddress.Hex(),
		AssetSubID:      p.AssetSubID.String(),
		Transferable:    p.Transferable,
		LockupSeconds:   p.LockupSeconds,
		CooldownSeconds: p.CooldownSeconds,
		Administrator:   p.Administrator.Hex(),
		TotalStaked:     p.TotalStaked.String(),
		OpenPositions:   p.OpenPositions,
	}
}

type positionView struct {
	ID                 uint64 `json:"id"`
	PoolID             uint64 `json:"pool_id"`
	AmountOrID         string `json:"amount_or_token_id"`
	StakeTimestamp     uint64 `json:"stake_timestamp"`
	UnstakeInitiatedAt uint64 `json:"unstake_initiated_at"`
	State              string `json:"state"`
	Owner              string `json:"owner,omitempty"`
}

func newPositionView(p model.Position, owner common.Address) positionView {
	v := positionView{
		ID:                 p.ID,
		PoolID:             p.PoolID,
		AmountOrID:         p.AmountOrID.String(),
		StakeTimestamp:     p.StakeTimestamp,
		UnstakeInitiatedAt: p.UnstakeInitiatedAt,
		State:              string(p.State()),
	}
	if owner != (common.Address{}) {
		v.Owner = owner.Hex()
	}
	return v
}

type createPoolRequest struct {
	AssetClass      uint16 `json:"asset_class"`
	AssetAddress    string `json:"asset_address"`
	AssetSubID      string `json:"asset_sub_id"`
	Transferable    bool   `json:"transferable"`
	LockupSeconds   uint64 `json:"lockup_seconds"`
	CooldownSeconds uint64 `json:"cooldown_seconds"`
	Administrator   string `json:"administrator"`
}

type updatePoolRequest struct {
	Transferable    *bool   `json:"transferable"`
	LockupSeconds   *uint64 `json:"lockup_seconds"`
	CooldownSeconds *uint64 `json:"cooldown_seconds"`
}

type administratorRequest struct {
	Administrator string `json:"administrator"`
}

type stakeRequest struct {
	Recipient  string `json:"recipient"`
	AmountOrID string `json:"amount_or_token_id"`
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total_pools":     s.svc.TotalPools(),
		"total_positions": s.svc.TotalPositions(),
	})
}

func (s *Server) listPools(c *gin.Context) {
	pools := s.svc.Pools()
	out := make([]poolView, 0, len(pools))
	for _, p := range pools {
		out = append(out, newPoolView(p))
	}
	c.JSON(http.StatusOK, gin.H{"pools": out})
}

func (s *Server) getPool(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := s.svc.Pool(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPoolView(p))
}

func (s *Server) poolAggregates(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	amount, err := s.svc.CurrentAmountInPool(id)
	if err != nil {
		writeError(c, err)
		return
	}
	count, err := s.svc.CurrentPositionsInPool(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pool_id":           id,
		"current_amount":    amount.String(),
		"current_positions": count,
	})
}

func (s *Server) poolPositions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	positions, err := s.svc.PositionsInPool(id)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]positionView, 0, len(positions))
	for _, pp := range positions {
		out = append(out, newPositionView(pp.Position, pp.Owner))
	}
	c.JSON(http.StatusOK, gin.H{"pool_id": id, "positions": out})
}

func (s *Server) getPosition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := s.svc.Position(id)
	if err != nil {
		writeError(c, err)
		return
	}
	owner, err := s.svc.OwnerOf(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPositionView(p, owner))
}

func (s *Server) positionOwner(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	owner, err := s.svc.OwnerOf(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_id": id, "owner": owner.Hex()})
}

func (s *Server) positionMetadata(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	meta, err := s.svc.PositionMetadata(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) createPool(c *gin.Context) {
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("decode body: %v", err))
		return
	}
	params := pool.CreateParams{
		AssetClass:      model.AssetClass(req.AssetClass),
		Transferable:    req.Transferable,
		LockupSeconds:   req.LockupSeconds,
		CooldownSeconds: req.CooldownSeconds,
	}
	var err error
	if params.AssetAddress, err = optionalAddress("asset_address", req.AssetAddress); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.AssetSubID != "" {
		if params.AssetSubID, err = parseAmount("asset_sub_id", req.AssetSubID); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if params.Administrator, err = optionalAddress("administrator", req.Administrator); err != nil {
		badRequest(c, err.Error())
		return
	}

	caller := callerFrom(c)
	id, err := s.svc.CreatePool(c.Request.Context(), caller, params)
	if err != nil {
		writeError(c, err)
		return
	}
	s.logger.Debug("pool created via api", zap.Uint64("pool_id", id), zap.String("caller", caller.Hex()))
	c.JSON(http.StatusCreated, gin.H{"pool_id": id})
}

func (s *Server) updatePool(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	// An empty body selects no field: the update is a no-op that still
	// re-announces the current configuration.
	var req updatePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, fmt.Sprintf("decode body: %v", err))
		return
	}
	var update pool.ConfigUpdate
	if req.Transferable != nil {
		update.ChangeTransferable, update.Transferable = true, *req.Transferable
	}
	if req.LockupSeconds != nil {
		update.ChangeLockup, update.LockupSeconds = true, *req.LockupSeconds
	}
	if req.CooldownSeconds != nil {
		update.ChangeCooldown, update.CooldownSeconds = true, *req.CooldownSeconds
	}
	if err := s.svc.UpdatePoolConfiguration(c.Request.Context(), callerFrom(c), id, update); err != nil {
		writeError(c, err)
		return
	}
	s.respondPool(c, id)
}

func (s *Server) transferAdministration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req administratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("decode body: %v", err))
		return
	}
	admin, err := optionalAddress("administrator", req.Administrator)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.svc.TransferPoolAdministration(c.Request.Context(), callerFrom(c), id, admin); err != nil {
		writeError(c, err)
		return
	}
	s.respondPool(c, id)
}

func (s *Server) stake(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	class, err := model.ParseAssetClass(c.Param("class"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	var req stakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("decode body: %v", err))
		return
	}
	amount, err := parseAmount("amount_or_token_id", req.AmountOrID)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	caller := callerFrom(c)
	recipient := caller
	if req.Recipient != "" {
		if recipient, err = optionalAddress("recipient", req.Recipient); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	positionID, err := s.svc.Stake(c.Request.Context(), ledger.StakeRequest{
		Caller:     caller,
		Recipient:  recipient,
		PoolID:     id,
		Class:      class,
		AmountOrID: amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"position_id": positionID})
}

func (s *Server) initiateUnstake(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.InitiateUnstake(c.Request.Context(), callerFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	p, err := s.svc.Position(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPositionView(p, callerFrom(c)))
}

func (s *Server) unstake(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Unstake(c.Request.Context(), callerFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_id": id, "state": string(model.StateBurned)})
}

func (s *Server) transfer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Sprintf("decode body: %v", err))
		return
	}
	caller := callerFrom(c)
	from := caller
	var err error
	if req.From != "" {
		if from, err = optionalAddress("from", req.From); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	to, err := optionalAddress("to", req.To)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.svc.Transfer(c.Request.Context(), caller, id, from, to); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_id": id, "owner": to.Hex()})
}

func (s *Server) respondPool(c *gin.Context, id uint64) {
	p, err := s.svc.Pool(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPoolView(p))
}

func pathID(c *gin.Context) (uint64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, fmt.Sprintf("invalid id: %s", raw))
		return 0, false
	}
	return id, true
}

// optionalAddress parses a hex address; an empty string is the null address.
func optionalAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s: %s", field, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("missing %s", field)
	}
	v, ok := new(big.Int).SetString(value, 0)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %s", field, value)
	}
	return v, nil
}
