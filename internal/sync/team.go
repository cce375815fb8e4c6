package sync

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/logger"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/stats"
)

type teamLoadedMsg struct {
	gen         uint64
	members     []model.Member
	projects    []model.Project
	tasks       []model.Task
	memberships []model.ProjectMember
	err         error
}

// TeamBoard loads a workspace's members, projects and tasks and derives
// team performance and the dashboard stat cards from them.
type TeamBoard struct {
	reader TeamReader
	opts   Options
	log    *logger.Logger

	workspaceID string
	gen         generation
	fetchGen    uint64

	summaries []model.TeamMemberSummary
	stats     model.DashboardStats
	loading   bool
	err       error
}

// NewTeamBoard creates an idle board.
func NewTeamBoard(r TeamReader, opts Options) TeamBoard {
	opts = opts.withDefaults()
	return TeamBoard{
		reader: r,
		opts:   opts,
		log:    opts.Log.Named("team_board"),
	}
}

// Load switches the board to a workspace and fetches its data.
func (b TeamBoard) Load(workspaceID string) (TeamBoard, tea.Cmd) {
	b.workspaceID = workspaceID
	b.summaries = nil
	b.stats = model.DashboardStats{}
	b.err = nil
	return b.fetch()
}

// Refresh refetches the current workspace.
func (b TeamBoard) Refresh() (TeamBoard, tea.Cmd) {
	b.err = nil
	return b.fetch()
}

// Summaries returns team performance, best completion rate first.
func (b TeamBoard) Summaries() []model.TeamMemberSummary { return b.summaries }

func (b TeamBoard) Stats() model.DashboardStats { return b.stats }

func (b TeamBoard) Loading() bool { return b.loading }

func (b TeamBoard) Err() error { return b.err }

// Update applies fetch results. A live activity on a task of this
// workspace triggers a refetch, since it may change the counts.
func (b TeamBoard) Update(msg tea.Msg) (TeamBoard, tea.Cmd) {
	switch msg := msg.(type) {
	case teamLoadedMsg:
		if msg.gen != b.fetchGen {
			b.log.Debugw("discarding stale fetch", "gen", msg.gen, "current", b.fetchGen)
			return b, nil
		}
		b.loading = false
		if msg.err != nil {
			b.err = msg.err
			return b, toast("team", msg.err)
		}
		b.summaries = stats.ComputeTeamPerformance(msg.members, msg.tasks, msg.memberships)
		b.stats = stats.ComputeDashboardStats(msg.tasks, msg.projects, b.opts.Now())
		return b, nil

	case ActivityReceivedMsg:
		a := msg.Activity
		if a.EntityType != model.EntityTask && a.EntityType != model.EntityProject {
			return b, nil
		}
		if b.workspaceID == "" || a.WorkspaceID != b.workspaceID {
			return b, nil
		}
		return b.fetch()
	}
	return b, nil
}

func (b TeamBoard) fetch() (TeamBoard, tea.Cmd) {
	b.fetchGen = b.gen.next()
	b.loading = true

	gen, reader, workspaceID, timeout := b.fetchGen, b.reader, b.workspaceID, b.opts.Timeout
	return b, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		msg := teamLoadedMsg{gen: gen}
		if msg.members, msg.err = reader.ListMembers(ctx, workspaceID); msg.err != nil {
			return msg
		}
		if msg.projects, msg.err = reader.ListProjects(ctx, workspaceID); msg.err != nil {
			return msg
		}
		if msg.tasks, msg.err = reader.ListTasks(ctx, workspaceID); msg.err != nil {
			return msg
		}
		msg.memberships, msg.err = reader.ListProjectMembers(ctx, workspaceID)
		return msg
	}
}
