package bass

// DelegatorOption is an interface which the delegator should implement to allow using configuration options
type DelegatorOption interface {
	SetRecvStateCount(n int) error
	SetPASyncSkip(skip uint16) error
	SetSyncTimeoutRatio(ratio int) error
	SetController(c Controller) error
	SetNotifier(n Notifier) error
	SetAuthorizer(a Authorizer) error
	SetBISHandler(h BISHandler) error
	SetSourceCache(c SourceCache) error
	SetClock(c Clock) error
	SetLogger(l Logger) error
}

// An Option is a configuration function, which configures the delegator.
type Option func(DelegatorOption) error

// OptRecvStateCount sets the capacity of the receive state table.
func OptRecvStateCount(n int) Option {
	return func(opt DelegatorOption) error {
		return opt.SetRecvStateCount(n)
	}
}

// OptPASyncSkip sets the skip passed to the controller on sync.
func OptPASyncSkip(skip uint16) Option {
	return func(opt DelegatorOption) error {
		return opt.SetPASyncSkip(skip)
	}
}

// OptSyncTimeoutRatio overrides PASyncIntervalToTimeoutRatio.
func OptSyncTimeoutRatio(ratio int) Option {
	return func(opt DelegatorOption) error {
		return opt.SetSyncTimeoutRatio(ratio)
	}
}

// OptController sets the controller PA sync requests are issued to.
func OptController(c Controller) Option {
	return func(opt DelegatorOption) error {
		return opt.SetController(c)
	}
}

// OptNotifier sets the receiver of receive state changes.
func OptNotifier(n Notifier) Option {
	return func(opt DelegatorOption) error {
		return opt.SetNotifier(n)
	}
}

// OptAuthorizer sets the control point authorization policy.
func OptAuthorizer(a Authorizer) Option {
	return func(opt DelegatorOption) error {
		return opt.SetAuthorizer(a)
	}
}

// OptBISHandler sets the receiver of BIS sync decisions.
func OptBISHandler(h BISHandler) Option {
	return func(opt DelegatorOption) error {
		return opt.SetBISHandler(h)
	}
}

// OptSourceCache persists receive states to c.
func OptSourceCache(c SourceCache) Option {
	return func(opt DelegatorOption) error {
		return opt.SetSourceCache(c)
	}
}

// OptClock replaces the clock used for sync watchdogs.
func OptClock(c Clock) Option {
	return func(opt DelegatorOption) error {
		return opt.SetClock(c)
	}
}

// OptLogger sets the logger
func OptLogger(l Logger) Option {
	return func(opt DelegatorOption) error {
		return opt.SetLogger(l)
	}
}
