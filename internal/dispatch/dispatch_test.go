package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"chatwars.ai/internal/persistence/store"
	"chatwars.ai/internal/protocol"
	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/combat"
	"chatwars.ai/internal/sim/engine"
	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/tuning"
)

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	tune := tuning.Defaults()
	tune.PointsPerMessage = 2000
	eng, err := engine.New(engine.Options{
		Store:   store.NewMemory(),
		Catalog: catalogs.Default(),
		Tuning:  tune,
		Rand:    combat.NewRand(1),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	d := New(eng, nil)
	d.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	return d
}

func cmd(id, op string, chatID, playerID int64) protocol.CmdMsg {
	return protocol.CmdMsg{Type: protocol.TypeCmd, ID: id, Op: op, ChatID: chatID, PlayerID: playerID}
}

func mustOK(t *testing.T, res protocol.ResultMsg, out any) {
	t.Helper()
	if !res.OK {
		t.Fatalf("%s failed: code=%s reason=%s msg=%s", res.Ref, res.Code, res.Reason, res.Message)
	}
	if out != nil {
		if err := json.Unmarshal(res.Data, out); err != nil {
			t.Fatalf("decode %s: %v", res.Ref, err)
		}
	}
}

func TestHandle_PurchaseFlow(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t)

	var act struct{ Awarded bool }
	mustOK(t, d.Handle(ctx, cmd("1", protocol.OpActivity, 5, 9)), &act)
	if !act.Awarded {
		t.Fatalf("expected points to be awarded")
	}

	buy := cmd("2", protocol.OpPurchase, 5, 9)
	buy.Asset, buy.Quantity = "soldier", 5
	var pr engine.PurchaseResult
	mustOK(t, d.Handle(ctx, buy), &pr)
	if pr.RemainingPoints != 1950 || pr.Owned != 5 {
		t.Fatalf("unexpected purchase: %+v", pr)
	}

	var sum engine.PlayerSummary
	mustOK(t, d.Handle(ctx, cmd("3", protocol.OpSummary, 5, 9)), &sum)
	if sum.Points != 1950 || sum.Power != 5 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	buy.ID, buy.Asset, buy.Quantity = "4", "warship", 10
	res := d.Handle(ctx, buy)
	if res.OK || res.Code != protocol.ErrNoResource || res.Reason != errs.CodeInsufficientFunds {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHandle_RequestValidation(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t)

	cases := []struct {
		name   string
		cmd    protocol.CmdMsg
		code   string
		reason string
	}{
		{"wrong type", protocol.CmdMsg{Type: "ACT", ID: "x", Op: protocol.OpSummary}, protocol.ErrProtoBadRequest, ReasonMalformed},
		{"missing id", protocol.CmdMsg{Type: protocol.TypeCmd, Op: protocol.OpSummary}, protocol.ErrProtoBadRequest, ReasonMalformed},
		{"unknown op", cmd("x", "teleport", 1, 1), protocol.ErrBadRequest, ReasonUnknownOp},
		{"missing player", cmd("x", protocol.OpPurchase, 1, 0), protocol.ErrBadRequest, ReasonMissingPlayer},
		{"missing owner", cmd("x", protocol.OpSetOwner, 1, 1), protocol.ErrBadRequest, ReasonMissingOwner},
	}
	for _, tc := range cases {
		res := d.Handle(ctx, tc.cmd)
		if res.OK || res.Code != tc.code || res.Reason != tc.reason {
			t.Fatalf("%s: unexpected result %+v", tc.name, res)
		}
		if !protocol.IsKnownCode(res.Code) {
			t.Fatalf("%s: unknown code %q", tc.name, res.Code)
		}
	}
}

func TestHandle_AttackErrors(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t)

	self := cmd("1", protocol.OpAttack, 1, 7)
	self.Target = 7
	if res := d.Handle(ctx, self); res.Code != protocol.ErrInvalidTarget || res.Reason != errs.CodeSelfAttack {
		t.Fatalf("self attack: %+v", res)
	}
	atk := cmd("2", protocol.OpAttack, 1, 7)
	atk.Target = 8
	if res := d.Handle(ctx, atk); res.Code != protocol.ErrNoResource || res.Reason != errs.CodeAttackerUnarmed {
		t.Fatalf("unarmed attacker: %+v", res)
	}
}

func TestHandle_OwnerGatesSettings(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t)

	claim := cmd("1", protocol.OpSetOwner, 3, 100)
	claim.OwnerID = 100
	mustOK(t, d.Handle(ctx, claim), nil)

	rules := cmd("2", protocol.OpSetRules, 3, 200)
	rules.Text = "anarchy"
	if res := d.Handle(ctx, rules); res.Code != protocol.ErrNoPermission || res.Reason != errs.CodeNotOwner {
		t.Fatalf("non-owner set_rules: %+v", res)
	}
	rules.PlayerID = 100
	var info engine.ChatInfo
	mustOK(t, d.Handle(ctx, rules), &info)
	if info.Rules != "anarchy" || info.OwnerID == nil || *info.OwnerID != 100 {
		t.Fatalf("unexpected info: %+v", info)
	}

	steal := cmd("3", protocol.OpSetOwner, 3, 200)
	steal.OwnerID = 200
	if res := d.Handle(ctx, steal); res.Code != protocol.ErrNoPermission {
		t.Fatalf("non-owner set_owner: %+v", res)
	}
	handover := cmd("4", protocol.OpSetOwner, 3, 100)
	handover.OwnerID = 200
	mustOK(t, d.Handle(ctx, handover), &info)
	if *info.OwnerID != 200 {
		t.Fatalf("owner after handover: %d", *info.OwnerID)
	}
}

func TestHandle_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t)
	const claimants = 16

	for chatID := int64(1); chatID <= 50; chatID++ {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []int64
		)
		start := make(chan struct{})
		for p := int64(1); p <= claimants; p++ {
			wg.Add(1)
			go func(p int64) {
				defer wg.Done()
				c := cmd(strconv.FormatInt(p, 10), protocol.OpSetOwner, chatID, p)
				c.OwnerID = p
				<-start
				res := d.Handle(ctx, c)
				switch {
				case res.OK:
					mu.Lock()
					winners = append(winners, p)
					mu.Unlock()
				case res.Code != protocol.ErrNoPermission:
					t.Errorf("chat %d player %d: %+v", chatID, p, res)
				}
			}(p)
		}
		close(start)
		wg.Wait()

		if len(winners) != 1 {
			t.Fatalf("chat %d claimed by %v", chatID, winners)
		}
		info, err := d.Engine().ChatInfo(ctx, chatID)
		if err != nil {
			t.Fatalf("ChatInfo: %v", err)
		}
		if info.OwnerID == nil || *info.OwnerID != winners[0] {
			t.Fatalf("chat %d owner=%v winner=%d", chatID, info.OwnerID, winners[0])
		}
	}
}

func TestHandle_QuestClaim(t *testing.T) {
	ctx := context.Background()
	cat, err := catalogs.ForVariant(catalogs.VariantExtended)
	if err != nil {
		t.Fatalf("ForVariant: %v", err)
	}
	tune := tuning.Defaults()
	tune.PointsPerMessage = 2000
	eng, err := engine.New(engine.Options{Store: store.NewMemory(), Catalog: cat, Tuning: tune, Rand: combat.NewRand(1)})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	d := New(eng, nil)

	mustOK(t, d.Handle(ctx, cmd("1", protocol.OpActivity, 1, 1)), nil)
	claim := cmd("2", protocol.OpQuestClaim, 1, 1)
	claim.Quest = "recruiter"
	if res := d.Handle(ctx, claim); res.Code != protocol.ErrConflict || res.Reason != errs.CodeQuestNotComplete {
		t.Fatalf("early claim: %+v", res)
	}
	buy := cmd("3", protocol.OpPurchase, 1, 1)
	buy.Asset, buy.Quantity = "soldier", 20
	mustOK(t, d.Handle(ctx, buy), nil)

	claim.ID = "4"
	var got engine.QuestClaimResult
	mustOK(t, d.Handle(ctx, claim), &got)
	if got.QuestID != "recruiter" || got.Reward != 150 || got.Points != 2000-200+150 {
		t.Fatalf("claim result: %+v", got)
	}
	claim.ID = "5"
	if res := d.Handle(ctx, claim); res.Code != protocol.ErrConflict || res.Reason != errs.CodeQuestClaimed {
		t.Fatalf("second claim: %+v", res)
	}
	claim.ID, claim.Quest = "6", "pacifist"
	if res := d.Handle(ctx, claim); res.Code != protocol.ErrInvalidTarget || res.Reason != errs.CodeQuestNotFound {
		t.Fatalf("unknown quest: %+v", res)
	}
}

func TestHandle_AllianceAndCatalog(t *testing.T) {
	ctx := context.Background()
	d := newDispatcher(t)

	create := cmd("1", protocol.OpAllianceCreate, 1, 1)
	create.Name = "North"
	mustOK(t, d.Handle(ctx, create), nil)
	create.ID, create.PlayerID = "2", 2
	if res := d.Handle(ctx, create); res.Code != protocol.ErrConflict || res.Reason != errs.CodeNameTaken {
		t.Fatalf("duplicate alliance: %+v", res)
	}
	join := cmd("3", protocol.OpAllianceJoin, 1, 2)
	join.Name = "South"
	if res := d.Handle(ctx, join); res.Code != protocol.ErrInvalidTarget || res.Reason != errs.CodeNotFound {
		t.Fatalf("join missing alliance: %+v", res)
	}

	var list []struct {
		Name        string `json:"name"`
		MemberCount int    `json:"member_count"`
	}
	mustOK(t, d.Handle(ctx, cmd("4", protocol.OpAllianceList, 1, 0)), &list)
	if len(list) != 1 || list[0].Name != "North" || list[0].MemberCount != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	var cat CatalogView
	mustOK(t, d.Handle(ctx, cmd("5", protocol.OpCatalog, 1, 0)), &cat)
	if cat.Variant != catalogs.VariantMilitary || len(cat.Assets) != 5 || cat.Digest == "" {
		t.Fatalf("unexpected catalog: %+v", cat)
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errs.ErrInvalidAsset, protocol.ErrBadRequest},
		{errs.ErrInvalidRanking, protocol.ErrBadRequest},
		{errs.ErrSelfAttack, protocol.ErrInvalidTarget},
		{errs.ErrDefenderUnarmed, protocol.ErrInvalidTarget},
		{errs.ErrInsufficientMaterials, protocol.ErrNoResource},
		{errs.ErrNotInAlliance, protocol.ErrConflict},
		{errs.ErrQuestClaimed, protocol.ErrConflict},
		{errs.ErrQuestNotFound, protocol.ErrInvalidTarget},
		{errs.ErrNotOwner.Withf("owned by 3"), protocol.ErrNoPermission},
		{errs.Persistence("commit", errors.New("io")), protocol.ErrInternal},
		{errors.New("plain"), protocol.ErrInternal},
	}
	for _, tc := range cases {
		if got := CodeFor(tc.err); got != tc.want {
			t.Fatalf("CodeFor(%v)=%s want %s", tc.err, got, tc.want)
		}
	}
}
