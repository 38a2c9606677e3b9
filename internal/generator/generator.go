// Package generator 封装剧本与结算文本的外部生成服务
// 生成结果在本边界上一次性解析并校验，内部状态机不接触未定型的数据
package generator

import (
	"context"
	"errors"
	"fmt"
)

// Option 是剧本中的一个可投票选项
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Scenario 是一轮的危机剧本，生成后在整轮内冻结
type Scenario struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Consequences string   `json:"consequences"`
	Options      []Option `json:"options"`
}

// HasOption 检查选项 ID 是否属于本剧本
func (s *Scenario) HasOption(optionID string) bool {
	for _, opt := range s.Options {
		if opt.ID == optionID {
			return true
		}
	}

	return false
}

// Outcome 是一轮的结算：叙事文本加各资源的带符号增减
type Outcome struct {
	Narrative string         `json:"narrative"`
	Deltas    map[string]int `json:"resource_deltas"`
}

// SessionContext 是生成时可见的会话上下文
type SessionContext struct {
	SessionID   string
	Round       int
	PlayerCount int
	Resources   map[string]int
}

// Generator 是外部生成服务的契约，调用可能失败或超时
type Generator interface {
	GenerateScenario(ctx context.Context, sc SessionContext) (*Scenario, error)
	GenerateOutcome(ctx context.Context, sc SessionContext, winning Option, totals map[string]float64) (*Outcome, error)
}

var validResources = map[string]bool{
	"tech":      true,
	"manpower":  true,
	"economy":   true,
	"happiness": true,
	"trust":     true,
}

// 单轮单项资源增减的幅度上限
const maxDelta = 50

// ValidateScenario 校验并规范化生成的剧本
// 选项数量限定 2~4，缺失的选项 ID 按位置补齐为 option1..option4
func ValidateScenario(s *Scenario) error {
	if s == nil {
		return errors.New("剧本为空")
	}

	if s.Title == "" || s.Description == "" {
		return errors.New("剧本缺少标题或描述")
	}

	if len(s.Options) < 2 || len(s.Options) > 4 {
		return fmt.Errorf("剧本选项数量非法: %d", len(s.Options))
	}

	seen := make(map[string]bool, len(s.Options))

	for i := range s.Options {
		if s.Options[i].ID == "" {
			s.Options[i].ID = fmt.Sprintf("option%d", i+1)
		}

		if s.Options[i].Text == "" {
			return fmt.Errorf("选项 %s 缺少文本", s.Options[i].ID)
		}

		if seen[s.Options[i].ID] {
			return fmt.Errorf("选项 ID 重复: %s", s.Options[i].ID)
		}

		seen[s.Options[i].ID] = true
	}

	return nil
}

// ValidateOutcome 校验并规范化生成的结算
// 丢弃未知资源键，增减幅度裁剪到 [-maxDelta, maxDelta]
func ValidateOutcome(o *Outcome) error {
	if o == nil {
		return errors.New("结算为空")
	}

	if o.Narrative == "" {
		return errors.New("结算缺少叙事文本")
	}

	if len(o.Deltas) == 0 {
		return errors.New("结算缺少资源增减")
	}

	cleaned := make(map[string]int, len(o.Deltas))

	for name, delta := range o.Deltas {
		if !validResources[name] {
			continue
		}

		if delta > maxDelta {
			delta = maxDelta
		}
		if delta < -maxDelta {
			delta = -maxDelta
		}

		cleaned[name] = delta
	}

	if len(cleaned) == 0 {
		return errors.New("结算不含任何有效资源键")
	}

	o.Deltas = cleaned

	return nil
}
