// Package job defines the job entity, its two execution kinds, the route
// router, and the callable task codec.
//
// # Job Entity
//
// A [Job] is either regular or callable:
//
//	KindRegular   route + data, resolved by a [Dispatcher] (usually a [Router])
//	KindCallable  a [Task] whose exported fields travel with the job
//
// ID and Header are filled in by the backend. Header carries bookkeeping
// such as receipt handles and the composite member index; handlers never
// see it.
//
// # Results
//
// Handlers and tasks return (any, error). An error, or the boolean false,
// means the job failed and may be released back to its queue. Anything
// else means success and the job is deleted. Use [Succeeded] to apply the
// same rule.
//
// # Defining a Route
//
// Use [Definition] with a typed handler. Job data is decoded into the
// argument type before the handler runs:
//
//	var SendEmail = job.NewDefinition("send_email",
//	    func(ctx context.Context, in EmailInput) error {
//	        return mailer.Send(in.To, in.Subject, in.Body)
//	    },
//	)
//
//	job.Register(router, SendEmail)
//
// # Callable Tasks
//
// Task types are registered by name in a [TaskRegistry], which encodes
// them to opaque descriptor bytes with msgpack:
//
//	job.RegisterTask[*Reindex](tasks, "reindex")
//	q.Post(ctx, job.NewCallable(&Reindex{Index: "users"}, nil))
package job
