package bubble

const (
	//UserTypeName is the type name of the built in user objects
	UserTypeName string = "user"
	//UserEmailField holds the authentication email of a user
	UserEmailField string = "authentication.email.email"
	//UserEmailConfirmedField tells if the user has confirmed the email address
	UserEmailConfirmedField string = "authentication.email.email_confirmed"
)
