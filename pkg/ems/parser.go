package ems

import (
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"ems-director/pkg/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// ErrMalformedReport 报表结构与预期不符
var ErrMalformedReport = errors.New("EMS 报表格式错误")

const (
	inputDayLayout  = "Monday, January 02, 2006"
	inputTimeLayout = "3:04 PM"

	// 报表用 wingdings 字体的 "4" 表示预约在第二天结束
	nextDayArrow = "4"

	// 地点之后依次是 Setup, Customer, Status, EC, Res ID
	unusedEventFields = 5
)

var (
	dateRegex = regexp.MustCompile(`^((Mon|Tues|Wednes|Thurs|Fri|Satur|Sun)day), ` +
		`(January|February|March|April|May|June|July|August|September|October|November|December) ` +
		`[0-9]{2}, [0-9]{4}$`)
	timeRegex    = regexp.MustCompile(`^1?[0-9]:[0-9]{2} [AP]M$`)
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

	// "Personnel - " 用前缀匹配，例如 "Personnel - Client Check In from 9:30 AM to 9:45 PM"
	descriptionHeadings = []string{"CMU AV Packages", "AV Requests", "CMU AV Add-On", "Personnel - "}

	// 每页页脚以 "EMS Enterprise" 开头
	pageFooters = []string{"EMS Enterprise", "34"}
)

// Parse 解析 EMS 报表 HTML，返回其中的所有预约
// 报表结构出错时返回已经完整解析的事件以及 ErrMalformedReport
func Parse(r io.Reader) ([]model.Event, error) {
	cells, err := cleanCells(r)
	if err != nil {
		return nil, err
	}
	return findEvents(&cellQueue{cells: cells})
}

// cleanCells 取出所有非空 td 的文本
func cleanCells(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "解析 HTML 失败")
	}
	// 链接和换行对解析没有意义
	doc.Find("a").Remove()
	doc.Find("br").Remove()

	cells := make([]string, 0)
	var renderErr error
	doc.Find("td").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		inner, err := s.Html()
		if err != nil {
			renderErr = errors.Wrap(err, "读取单元格失败")
			return false
		}
		// 只含排版空白的单元格视为空
		if strings.TrimSpace(inner) == "" {
			return true
		}
		cells = append(cells, cleanCell(inner))
		return true
	})
	if renderErr != nil {
		return nil, renderErr
	}
	return cells, nil
}

// cleanCell 去掉标签、解码实体、删除普通空白，再把不间断空格换成普通空格
// 报表中单词之间都用 &nbsp; 分隔，普通空白只来自排版
func cleanCell(inner string) string {
	text := htmlTagRegex.ReplaceAllString(inner, "")
	text = html.UnescapeString(text)
	text = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\v', '\f', '\r':
			return -1
		case '\u00a0':
			return ' '
		}
		return r
	}, text)
	return text
}

type cellQueue struct {
	cells []string
	pos   int
}

func (q *cellQueue) empty() bool {
	return q.pos >= len(q.cells)
}

func (q *cellQueue) next() (string, error) {
	if q.empty() {
		return "", errors.Wrapf(ErrMalformedReport, "第 %d 个单元格之后报表意外结束", q.pos)
	}
	c := q.cells[q.pos]
	q.pos++
	return c, nil
}

func (q *cellQueue) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := q.next(); err != nil {
			return err
		}
	}
	return nil
}

func findEvents(q *cellQueue) ([]model.Event, error) {
	events := make([]model.Event, 0)
	if q.empty() {
		return events, nil
	}

	var currentDate *time.Time
	entry, _ := q.next()
	for !q.empty() {
		switch {
		case isDate(entry):
			d, err := time.ParseInLocation(inputDayLayout, entry, time.UTC)
			if err != nil {
				return events, errors.Wrapf(ErrMalformedReport, "日期 %q 无法解析: %v", entry, err)
			}
			currentDate = &d
			entry, _ = q.next()
		case isTime(entry):
			ev, next, err := readEvent(q, entry, currentDate)
			if err != nil {
				return events, err
			}
			events = append(events, ev)
			entry = next
		default:
			// 不关心的字段，例如 Res ID
			entry, _ = q.next()
		}
	}
	return events, nil
}

// readEvent 从预约开始时间读到事件结束，返回事件以及作为结束标志的单元格
func readEvent(q *cellQueue, entry string, date *time.Time) (model.Event, string, error) {
	var ev model.Event
	if date == nil {
		return ev, "", errors.Wrapf(ErrMalformedReport, "时间 %q 出现在任何日期之前", entry)
	}

	resStart, err := parseTime(entry)
	if err != nil {
		return ev, "", err
	}
	ev.Start = atTime(*date, resStart)

	// 忽略事件开始时间
	if err := q.skip(1); err != nil {
		return ev, "", err
	}

	if entry, err = q.next(); err != nil {
		return ev, "", err
	}
	eventEnd, err := parseTime(entry)
	if err != nil {
		return ev, "", err
	}
	ev.End = atTime(*date, eventEnd)

	// 忽略预约结束时间
	if err := q.skip(1); err != nil {
		return ev, "", err
	}

	if entry, err = q.next(); err != nil {
		return ev, "", err
	}
	if entry == nextDayArrow {
		if entry, err = q.next(); err != nil {
			return ev, "", err
		}
		// 箭头基于预约结束时间，只有事件本身结束时间早于开始时间才算跨天
		// 超过 24 小时的事件无法区分
		if eventEnd.Before(resStart) {
			ev.End = ev.End.AddDate(0, 0, 1)
		}
	}
	ev.Location = entry

	if err := q.skip(unusedEventFields); err != nil {
		return ev, "", err
	}
	if ev.Subject, err = q.next(); err != nil {
		return ev, "", err
	}

	for {
		if entry, err = q.next(); err != nil {
			return ev, "", err
		}
		if isDescription(entry) || isEndOfEvent(entry) {
			break
		}
	}

	if isDescription(entry) {
		var desc strings.Builder
		desc.WriteString(entry)
		desc.WriteByte(' ')
		for {
			if entry, err = q.next(); err != nil {
				return ev, "", err
			}
			if isEndOfEvent(entry) {
				break
			}
			desc.WriteString(entry)
			desc.WriteByte(' ')
		}
		// 与 ems-processor.jar 一致，保留末尾空格
		ev.Description = desc.String()
	}

	return ev, entry, nil
}

func parseTime(entry string) (time.Time, error) {
	t, err := time.Parse(inputTimeLayout, entry)
	if err != nil {
		return t, errors.Wrapf(ErrMalformedReport, "时间 %q 无法解析: %v", entry, err)
	}
	return t, nil
}

// atTime 报表时间没有时区，date 为 UTC，夏令时切换日的时刻不会被调整
func atTime(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, date.Location())
}

func isDate(entry string) bool {
	return dateRegex.MatchString(entry)
}

func isTime(entry string) bool {
	return timeRegex.MatchString(entry)
}

func isDescription(entry string) bool {
	for _, heading := range descriptionHeadings {
		if strings.HasPrefix(entry, heading) {
			return true
		}
	}
	return false
}

func isEndOfPage(entry string) bool {
	for _, footer := range pageFooters {
		if entry == footer {
			return true
		}
	}
	return false
}

func isEndOfEvent(entry string) bool {
	return isDate(entry) || isTime(entry) || isEndOfPage(entry)
}
