// Package cron posts regular jobs on a schedule.
//
// A [Scheduler] holds a fixed set of entries in memory and runs in one
// process. Each tick it posts every entry whose next run time has passed
// and computes the following run from the schedule. Run exactly one
// scheduler per queue; there is no cross-process coordination.
//
// Schedules use the standard 5-field cron syntax ("0 9 * * 1-5") or a
// descriptor ("@hourly", "@every 30s").
//
//	s := cron.NewScheduler(q)
//	if err := s.Add(cron.Entry{Name: "report", Schedule: "0 9 * * *", Route: "report/daily"}); err != nil {
//	    return err
//	}
//	return s.Run(ctx)
package cron
