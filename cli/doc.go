// Package cli builds the taskq command tree. Applications embed it in
// their own main package with the router and task registry that hold
// their handlers, so that worker processes spawned by "listen" can run
// every job the application posts.
//
//	func main() {
//	    router := job.NewRouter()
//	    job.Register(router, sendEmail)
//	    root := cli.New(cli.WithRouter(router))
//	    if err := root.ExecuteContext(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
//
// Commands:
//
//	listen     supervise worker processes while jobs are pending
//	work       run one fetch and run cycle
//	post       post a job
//	run-task   run a job now without the backend
//	peek       show the next jobs without consuming them
//	size       print the number of pending jobs
//	purge      delete every pending job
//	serve      serve the HTTP API
//	schedule   post recurring jobs from cron entries
package cli
