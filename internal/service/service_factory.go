package service

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	deps                Dependencies
	sessionService      *SessionService
	verificationService *VerificationService
	userService         *UserService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(deps Dependencies) *ServiceFactory {
	return &ServiceFactory{deps: deps}
}

// SessionService returns the session service instance (singleton)
func (f *ServiceFactory) SessionService() *SessionService {
	if f.sessionService == nil {
		f.sessionService = NewSessionService(f.deps)
	}
	return f.sessionService
}

// VerificationService returns the verification service instance (singleton)
func (f *ServiceFactory) VerificationService() *VerificationService {
	if f.verificationService == nil {
		f.verificationService = NewVerificationService(f.deps)
	}
	return f.verificationService
}

// UserService returns the user service instance (singleton)
func (f *ServiceFactory) UserService() *UserService {
	if f.userService == nil {
		f.userService = NewUserService(f.deps)
	}
	return f.userService
}
