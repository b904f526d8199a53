package agent

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/studyplan/internal/domain"
)

// PlanContext is everything the plan prompt is rendered from.
type PlanContext struct {
	Preference *domain.Preference
	Reviews    []*domain.Review
	Completed  []*domain.Task
	Request    domain.PlanRequest
	Today      time.Time
}

const planFraming = `你是一个专业的考研学习规划助手。请根据用户的学习偏好、历史学习情况和复盘反馈，生成一份科学合理、个性化的全天学习计划。

## 考研复习阶段说明：
- 基础阶段(3-6月)：重点打牢基础，系统学习各科目知识点，数学重视概念理解和基础题型
- 强化阶段(7-10月)：强化训练，大量做题，总结题型和方法，英语重点阅读和写作
- 冲刺阶段(11-12月)：查漏补缺，模拟考试，政治背诵，真题演练
`

const planPrinciples = `
## 规划原则：
1. 根据用户设定的学习时间安排任务
2. 不同科目交替学习，避免长时间学习同一科目导致疲劳
3. 上午安排需要高度集中注意力的科目（如数学、专业课）
4. 下午可安排英语阅读、政治等
5. 晚上适合复习巩固和做题
6. 每个学习时段1-2小时，中间安排10-15分钟休息
7. 重点科目和薄弱科目要多安排时间
8. 参考用户最近的学习进度和复盘反馈调整计划
9. 任务内容要具体，如"复习高数第X章极限与连续"、"背诵英语单词200个"、"做政治选择题50道"
`

const planOutputFormat = `
## 输出要求：
根据用户的学习时间和偏好，生成8-15个学习任务，覆盖全天有效学习时间，科目交替安排。
严格按照以下JSON数组格式返回，不要包含任何其他文字：
[{"start_time": "07:00", "end_time": "08:30", "content": "具体任务内容", "subject": "科目名"}]

注意：
1. subject字段必须是用户提供的科目之一
2. 时间安排要符合用户设定的学习时间和午休时间
3. 重点科目和薄弱科目要多安排时间
4. 任务内容要具体、可执行
`

// RenderPlanPrompt builds the plan instruction document. It is a pure
// function of pc; a nil preference renders the defaults.
func RenderPlanPrompt(pc PlanContext) string {
	pref := pc.Preference
	if pref == nil {
		pref = domain.DefaultPreference(0)
	}

	var b strings.Builder
	b.WriteString(planFraming)
	b.WriteString(planPrinciples)

	b.WriteString("\n## 用户学习偏好：\n")
	fmt.Fprintf(&b, "每日学习时长: %s小时\n", strconv.FormatFloat(pref.DailyHours, 'f', -1, 64))
	fmt.Fprintf(&b, "学习时间: %s - %s\n", pref.StartTime, pref.EndTime)
	fmt.Fprintf(&b, "午休时间: %s - %s\n", pref.BreakStart, pref.BreakEnd)
	fmt.Fprintf(&b, "当前阶段: %s\n", pref.Phase.Label())
	if len(pref.FocusSubjects) > 0 {
		fmt.Fprintf(&b, "重点科目(多安排时间): %s\n", strings.Join(pref.FocusSubjects, ", "))
	}
	if len(pref.WeakSubjects) > 0 {
		fmt.Fprintf(&b, "薄弱科目(需要加强): %s\n", strings.Join(pref.WeakSubjects, ", "))
	}
	if days, ok := daysUntil(pc.Today, pref.ExamDate); ok {
		fmt.Fprintf(&b, "距离考试: %d天 (%s)\n", days, pref.ExamDate)
	}
	if pref.Notes != "" {
		fmt.Fprintf(&b, "用户备注: %s\n", pref.Notes)
	}
	if pc.Request.ExamDate != "" {
		fmt.Fprintf(&b, "考试日期: %s\n", pc.Request.ExamDate)
	}

	if len(pc.Request.Subjects) > 0 {
		fmt.Fprintf(&b, "\n学习科目: %s\n", strings.Join(pc.Request.Subjects, ", "))
		b.WriteString("（请确保每个科目都有安排，科目之间交替进行）\n")
	}
	if len(pc.Request.IncompleteTasks) > 0 {
		fmt.Fprintf(&b, "\n昨日未完成任务（优先安排）:\n%s\n", strings.Join(pc.Request.IncompleteTasks, "\n"))
	}
	if pc.Request.Notes != "" {
		fmt.Fprintf(&b, "\n用户额外说明: %s\n", pc.Request.Notes)
	}

	if len(pc.Reviews) > 0 {
		b.WriteString("\n最近复盘反馈（参考调整计划）:\n")
		for _, r := range pc.Reviews {
			b.WriteString(reviewLine(r))
			b.WriteByte('\n')
		}
	}
	if len(pc.Completed) > 0 {
		b.WriteString("\n最近完成的任务（参考学习进度）:\n")
		for _, t := range pc.Completed {
			fmt.Fprintf(&b, "%s: [%s] %s\n", t.TaskDate, t.SubjectName, t.Content)
		}
	}

	b.WriteString(planOutputFormat)
	return b.String()
}

func reviewLine(r *domain.Review) string {
	line := r.ReviewDate + ":"
	if r.Feelings != "" {
		line += " 感受-" + r.Feelings
	}
	if r.Difficulties != "" {
		line += " 困难-" + r.Difficulties
	}
	return line
}

// daysUntil returns the whole days from today to the date exam.
func daysUntil(today time.Time, exam string) (int, bool) {
	if exam == "" || today.IsZero() {
		return 0, false
	}
	target, err := time.ParseInLocation(domain.DateLayout, exam, today.Location())
	if err != nil {
		return 0, false
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	return int(math.Round(target.Sub(start).Hours() / 24)), true
}
