package web

// User-facing flash and form messages.
const (
	msgResetRecentlyRequested = "You recently requested a password reset. Please check your email for the link to reset your password."
	msgResetLinkSent          = "A password reset link has been sent to %s."
	msgResetLinkInvalid       = "The link is invalid or has expired, please try again."
	msgResetLinkUsed          = "This password reset link has already been used."
	msgResetDone              = "Your password has been reset successfully, you are now logged in."

	msgVerifyRecentlyRequested = "You recently requested an account verification. Please check your email for the link to verify your account."
	msgVerifyLinkSent          = "A verification link has been sent to %s."
	msgVerifyLinkInvalid       = "The verification link is invalid or has expired, try resending."
	msgVerifyLinkUsed          = "This verification link has already been used."
	msgVerifyDone              = "Your email has been verified successfully."
	msgUnverifiedBanner        = "Your account isn't verified. Check your email for a verification link."

	msgRegisterRateLimited = "You recently registered. Please try again later."
	msgRegisterDone        = "Registration successful! You are now logged in."

	msgInvalidCredentials = "Invalid credentials."
	msgLoginRateLimited   = "Too many failed login attempts. Please try again later."

	msgLogoutOtherDone      = "Other devices have been logged out."
	msgChangePasswordDone   = "You've successfully changed your password."
	msgChangeEmailDone      = "You have successfully changed your email."
	msgProfileDone          = "You've successfully updated your profile."
	msgServiceUnavailable   = "The service is temporarily unavailable. Please try again later."
)
