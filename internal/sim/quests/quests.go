package quests

import (
	"chatwars.ai/internal/sim/catalogs"
	"chatwars.ai/internal/sim/errs"
	"chatwars.ai/internal/sim/model"
)

// Ensure assigns every catalog quest the player does not have yet.
func Ensure(list *model.QuestList, cat *catalogs.Catalog) {
	have := make(map[string]bool, len(list.Quests))
	for _, q := range list.Quests {
		have[q.ID] = true
	}
	for _, tpl := range cat.QuestList() {
		if have[tpl.ID] {
			continue
		}
		list.Quests = append(list.Quests, model.Quest{
			ID:     tpl.ID,
			Title:  tpl.Title,
			Type:   tpl.Type,
			Status: model.QuestActive,
			Target: tpl.Target,
			Reward: tpl.Reward,
		})
	}
}

// Advance adds n to every active quest of the given type and completes the
// ones that reach their target. It never touches points: rewards are paid
// by Claim. It returns the quests completed by this call.
func Advance(list *model.QuestList, questType string, n int64) []model.Quest {
	if n <= 0 {
		return nil
	}
	var done []model.Quest
	for i := range list.Quests {
		q := &list.Quests[i]
		if q.Type != questType || q.Status != model.QuestActive {
			continue
		}
		q.Count += n
		if q.Target > 0 && q.Count >= q.Target {
			q.Count = q.Target
			q.Progress = 1
			q.Status = model.QuestCompleted
			done = append(done, *q)
			continue
		}
		q.Progress = progress(q.Count, q.Target)
	}
	return done
}

// Claim credits the reward of a completed quest to p and marks it claimed.
func Claim(list *model.QuestList, p *model.Player, questID string) (model.Quest, error) {
	for i := range list.Quests {
		q := &list.Quests[i]
		if q.ID != questID {
			continue
		}
		switch q.Status {
		case model.QuestActive:
			return model.Quest{}, errs.ErrQuestNotComplete.Withf("quest %q is at %d/%d", q.ID, q.Count, q.Target)
		case model.QuestClaimed:
			return model.Quest{}, errs.ErrQuestClaimed.Withf("quest %q was already claimed", q.ID)
		}
		q.Status = model.QuestClaimed
		p.Points += q.Reward
		return *q, nil
	}
	return model.Quest{}, errs.ErrQuestNotFound.Withf("unknown quest %q", questID)
}

func progress(count, target int64) float64 {
	if target <= 0 {
		return 1
	}
	f := float64(count) / float64(target)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
