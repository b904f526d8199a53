package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlanContext() PlanContext {
	pref := domain.DefaultPreference(1)
	pref.DailyHours = 9.5
	pref.Phase = domain.PhaseSprint
	pref.FocusSubjects = []string{"数学", "专业课"}
	pref.WeakSubjects = []string{"英语"}
	pref.ExamDate = "2026-12-20"
	pref.Notes = "晚上效率高"

	return PlanContext{
		Preference: pref,
		Reviews: []*domain.Review{
			{ReviewDate: "2026-10-18", Feelings: "良好", Difficulties: "线代"},
			{ReviewDate: "2026-10-17", Feelings: "疲惫"},
		},
		Completed: []*domain.Task{
			{TaskDate: "2026-10-18", SubjectName: "数学", Content: "极限"},
		},
		Request: domain.PlanRequest{
			ExamDate:        "2026-12-20",
			Subjects:        []string{"数学", "英语", "政治"},
			IncompleteTasks: []string{"背单词", "政治选择题"},
			Notes:           "下午有课",
		},
		Today: time.Date(2026, 10, 19, 15, 30, 0, 0, time.Local),
	}
}

func TestRenderPlanPromptSectionOrder(t *testing.T) {
	prompt := RenderPlanPrompt(samplePlanContext())

	markers := []string{
		"## 考研复习阶段说明：",
		"## 规划原则：",
		"## 用户学习偏好：",
		"每日学习时长: 9.5小时",
		"学习时间: 07:00 - 22:00",
		"午休时间: 12:00 - 14:00",
		"当前阶段: 冲刺阶段 - 查漏补缺和模拟考试",
		"重点科目(多安排时间): 数学, 专业课",
		"薄弱科目(需要加强): 英语",
		"距离考试: 62天 (2026-12-20)",
		"用户备注: 晚上效率高",
		"考试日期: 2026-12-20",
		"学习科目: 数学, 英语, 政治",
		"昨日未完成任务（优先安排）:\n背单词\n政治选择题",
		"用户额外说明: 下午有课",
		"最近复盘反馈（参考调整计划）:",
		"2026-10-18: 感受-良好 困难-线代",
		"2026-10-17: 感受-疲惫\n",
		"最近完成的任务（参考学习进度）:",
		"2026-10-18: [数学] 极限",
		"## 输出要求：",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(prompt, m)
		require.GreaterOrEqual(t, idx, 0, "missing %q", m)
		assert.Greater(t, idx, last, "%q is out of order", m)
		last = idx
	}
}

func TestRenderPlanPromptIsDeterministic(t *testing.T) {
	pc := samplePlanContext()
	assert.Equal(t, RenderPlanPrompt(pc), RenderPlanPrompt(pc))
}

func TestRenderPlanPromptDefaults(t *testing.T) {
	prompt := RenderPlanPrompt(PlanContext{Today: time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)})

	assert.Contains(t, prompt, "每日学习时长: 8小时")
	assert.Contains(t, prompt, "当前阶段: 基础阶段 - 重点打牢基础知识")
	for _, absent := range []string{"重点科目(", "薄弱科目(", "距离考试", "学习科目:", "昨日未完成任务", "最近复盘反馈", "最近完成的任务", "用户额外说明"} {
		assert.NotContains(t, prompt, absent)
	}
}

func TestDaysUntil(t *testing.T) {
	today := time.Date(2026, 10, 19, 23, 59, 0, 0, time.Local)

	days, ok := daysUntil(today, "2026-10-20")
	require.True(t, ok)
	assert.Equal(t, 1, days)

	days, ok = daysUntil(today, "2026-10-19")
	require.True(t, ok)
	assert.Equal(t, 0, days)

	_, ok = daysUntil(today, "")
	assert.False(t, ok)
	_, ok = daysUntil(today, "soon")
	assert.False(t, ok)
}
