package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"geoattend/internal/attendance"
)

type AttendanceCmd struct {
	List AttendanceListCmd `cmd:"" help:"List attendance records"`
}

type AttendanceListCmd struct {
	DB `embed:""`

	Course  string `help:"List records for a course" xor:"filter" required:""`
	Student string `help:"List records for a student" xor:"filter" required:""`
}

func (l *AttendanceListCmd) Run(ctx context.Context, globals *Globals) error {
	b, err := l.open(ctx, false)
	if err != nil {
		return err
	}
	defer b.Close()

	var recs []attendance.Record
	if l.Course != "" {
		recs, err = b.Store.FindAttendanceByCourse(ctx, l.Course)
	} else {
		recs, err = b.Store.FindAttendanceByStudent(ctx, l.Student)
	}
	if err != nil {
		return err
	}

	printRecords(globals.Out, recs)
	return nil
}

func printRecords(out io.Writer, recs []attendance.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "no records")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCOURSE\tSTUDENT\tSTATUS\tMARKED AT")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.LectureDate.Format(time.DateOnly),
			r.CourseCode,
			r.StudentID,
			r.Status,
			r.MarkedAt.Format(time.TimeOnly),
		)
	}
	_ = w.Flush()
}
