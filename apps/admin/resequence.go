package main

import (
	"context"
	"fmt"
)

// resequence compacts the ordering of the modules and contents of a course (all courses if courseID is empty)
// and recomputes their counters.
func (cli *commandLine) resequence(courseID string) error {
	var ids []string
	if courseID != "" {
		ids = append(ids, courseID)
	}
	report, err := cli.courseSvc.Repair(context.Background(), ids...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d course(s) repaired, %d item(s) moved\n", report.Courses, report.Moved)
	return nil
}
