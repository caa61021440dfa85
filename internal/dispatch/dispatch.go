// Package dispatch turns protocol commands into engine calls and engine
// results back into protocol results. It is shared by every transport.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"chatwars.ai/internal/protocol"
	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/engine"
	"chatwars.ai/internal/sim/errs"
)

// Reasons for failures detected before the engine is called.
const (
	ReasonMalformed     = "MALFORMED"
	ReasonUnknownOp     = "UNKNOWN_OP"
	ReasonMissingPlayer = "MISSING_PLAYER"
	ReasonMissingOwner  = "MISSING_OWNER"
)

type handlerFunc func(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error)

var handlers = map[string]handlerFunc{
	protocol.OpActivity:       handleActivity,
	protocol.OpPurchase:       handlePurchase,
	protocol.OpAttack:         handleAttack,
	protocol.OpAllianceCreate: handleAllianceCreate,
	protocol.OpAllianceJoin:   handleAllianceJoin,
	protocol.OpAllianceLeave:  handleAllianceLeave,
	protocol.OpAllianceList:   handleAllianceList,
	protocol.OpSummary:        handleSummary,
	protocol.OpChatInfo:       handleChatInfo,
	protocol.OpSetOwner:       handleSetOwner,
	protocol.OpSetRules:       handleSetRules,
	protocol.OpSetWelcome:     handleSetWelcome,
	protocol.OpLeaderboard:    handleLeaderboard,
	protocol.OpHire:           handleHire,
	protocol.OpHarvest:        handleHarvest,
	protocol.OpQuests:         handleQuests,
	protocol.OpQuestClaim:     handleQuestClaim,
	protocol.OpCatalog:        handleCatalog,
}

// needsPlayer lists the ops that act on behalf of a player.
var needsPlayer = map[string]bool{
	protocol.OpActivity:       true,
	protocol.OpPurchase:       true,
	protocol.OpAttack:         true,
	protocol.OpAllianceCreate: true,
	protocol.OpAllianceJoin:   true,
	protocol.OpAllianceLeave:  true,
	protocol.OpSummary:        true,
	protocol.OpHire:           true,
	protocol.OpHarvest:        true,
	protocol.OpQuests:         true,
	protocol.OpQuestClaim:     true,
}

type Dispatcher struct {
	eng *engine.Engine
	log *logrus.Entry
	now func() time.Time
}

func New(eng *engine.Engine, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{eng: eng, log: log.WithField("component", "dispatch"), now: time.Now}
}

func (d *Dispatcher) Engine() *engine.Engine { return d.eng }

// Handle runs one command and always returns a RESULT for it.
func (d *Dispatcher) Handle(ctx context.Context, cmd protocol.CmdMsg) protocol.ResultMsg {
	if cmd.Type != protocol.TypeCmd || cmd.ID == "" {
		return protocol.ErrResult(cmd.ID, protocol.ErrProtoBadRequest, ReasonMalformed, "expected CMD with id")
	}
	h := handlers[cmd.Op]
	if h == nil {
		return protocol.ErrResult(cmd.ID, protocol.ErrBadRequest, ReasonUnknownOp, "unknown op "+cmd.Op)
	}
	if needsPlayer[cmd.Op] && cmd.PlayerID == 0 {
		return protocol.ErrResult(cmd.ID, protocol.ErrBadRequest, ReasonMissingPlayer, "player_id is required")
	}

	data, err := h(d, ctx, cmd)
	if err != nil {
		return d.errorResult(cmd, err)
	}
	res, err := protocol.OKResult(cmd.ID, data)
	if err != nil {
		d.log.WithError(err).WithField("op", cmd.Op).Error("encode result")
		return protocol.ErrResult(cmd.ID, protocol.ErrInternal, "", "encode result")
	}
	return res
}

func (d *Dispatcher) errorResult(cmd protocol.CmdMsg, err error) protocol.ResultMsg {
	var re *requestError
	if errors.As(err, &re) {
		return protocol.ErrResult(cmd.ID, re.code, re.reason, re.msg)
	}
	code := CodeFor(err)
	msg := err.Error()
	if code == protocol.ErrInternal {
		// Store details stay in the server log.
		msg = "internal error"
	}
	return protocol.ErrResult(cmd.ID, code, errs.CodeOf(err), msg)
}

// CodeFor maps an engine error onto a protocol error code.
func CodeFor(err error) string {
	switch errs.CodeOf(err) {
	case errs.CodeInvalidAsset, errs.CodeInvalidUnit, errs.CodeInvalidQuantity, errs.CodeInvalidName, errs.CodeInvalidRanking:
		return protocol.ErrBadRequest
	case errs.CodeSelfAttack, errs.CodeNotFound, errs.CodeDefenderUnarmed, errs.CodeQuestNotFound:
		return protocol.ErrInvalidTarget
	case errs.CodeInsufficientFunds, errs.CodeInsufficientMaterials, errs.CodeAttackerUnarmed:
		return protocol.ErrNoResource
	case errs.CodeAlreadyInAlliance, errs.CodeNameTaken, errs.CodeNotInAlliance, errs.CodeQuestNotComplete, errs.CodeQuestClaimed:
		return protocol.ErrConflict
	case errs.CodeNotOwner:
		return protocol.ErrNoPermission
	}
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return protocol.ErrBadRequest
	case errs.KindState:
		return protocol.ErrConflict
	default:
		return protocol.ErrInternal
	}
}

// requestError is a failure detected by the dispatcher itself.
type requestError struct {
	code   string
	reason string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func handleActivity(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	ts := d.now()
	if cmd.Timestamp > 0 {
		ts = time.UnixMilli(cmd.Timestamp)
	}
	awarded, err := d.eng.OnActivity(ctx, cmd.ChatID, cmd.PlayerID, ts)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"awarded": awarded}, nil
}

func handlePurchase(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.Purchase(ctx, cmd.ChatID, cmd.PlayerID, cmd.Asset, cmd.Quantity)
}

func handleAttack(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.Attack(ctx, cmd.ChatID, cmd.PlayerID, cmd.Target)
}

func handleAllianceCreate(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.AllianceCreate(ctx, cmd.ChatID, cmd.PlayerID, cmd.Name)
}

func handleAllianceJoin(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.AllianceJoin(ctx, cmd.ChatID, cmd.PlayerID, cmd.Name)
}

func handleAllianceLeave(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.AllianceLeave(ctx, cmd.ChatID, cmd.PlayerID)
}

func handleAllianceList(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.AllianceList(ctx, cmd.ChatID)
}

func handleSummary(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.PlayerSummary(ctx, cmd.ChatID, cmd.PlayerID)
}

func handleChatInfo(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.ChatInfo(ctx, cmd.ChatID)
}

func handleSetOwner(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	if cmd.OwnerID == 0 {
		return nil, &requestError{code: protocol.ErrBadRequest, reason: ReasonMissingOwner, msg: "owner_id is required"}
	}
	if err := d.eng.SetOwner(ctx, cmd.ChatID, cmd.OwnerID, engine.OwnerOrUnclaimed(cmd.PlayerID)); err != nil {
		return nil, err
	}
	return d.eng.ChatInfo(ctx, cmd.ChatID)
}

func handleSetRules(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	if err := d.eng.SetRules(ctx, cmd.ChatID, cmd.PlayerID, cmd.Text, engine.OwnerOrUnclaimed(cmd.PlayerID)); err != nil {
		return nil, err
	}
	return d.eng.ChatInfo(ctx, cmd.ChatID)
}

func handleSetWelcome(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	if err := d.eng.SetWelcome(ctx, cmd.ChatID, cmd.PlayerID, cmd.Text, engine.OwnerOrUnclaimed(cmd.PlayerID)); err != nil {
		return nil, err
	}
	return d.eng.ChatInfo(ctx, cmd.ChatID)
}

func handleLeaderboard(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.Leaderboard(ctx, cmd.ChatID, cmd.By, cmd.Limit)
}

func handleHire(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.Hire(ctx, cmd.ChatID, cmd.PlayerID, cmd.Unit, cmd.Quantity)
}

func handleHarvest(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.Harvest(ctx, cmd.ChatID, cmd.PlayerID)
}

func handleQuests(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.Quests(ctx, cmd.ChatID, cmd.PlayerID)
}

func handleQuestClaim(d *Dispatcher, ctx context.Context, cmd protocol.CmdMsg) (any, error) {
	return d.eng.QuestClaim(ctx, cmd.ChatID, cmd.PlayerID, cmd.Quest)
}

type CatalogView struct {
	Variant   string                   `json:"variant"`
	Digest    string                   `json:"digest"`
	Assets    []catalogs.AssetDef      `json:"assets"`
	Materials []catalogs.MaterialDef   `json:"materials,omitempty"`
	Units     []catalogs.UnitDef       `json:"units,omitempty"`
	Quests    []catalogs.QuestTemplate `json:"quests,omitempty"`
}

func handleCatalog(d *Dispatcher, _ context.Context, _ protocol.CmdMsg) (any, error) {
	cat := d.eng.Catalog()
	v := CatalogView{
		Variant: cat.Variant,
		Digest:  cat.Digest,
		Assets:  cat.AssetList(),
		Units:   cat.UnitList(),
		Quests:  cat.QuestList(),
	}
	for _, id := range cat.Materials.Order {
		v.Materials = append(v.Materials, cat.Materials.ByID[id])
	}
	return v, nil
}
