package i18n

import (
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	OTPSubject string
	OTPText    string
	OTPHTML    string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		OTPSubject: "Your OTP for Reset Password",
		OTPText: "{app} Password Reset\n\nDear User,\n\nYour OTP is: {code}\n" +
			"This OTP is valid for {minutes} minutes.\nDo not share it with anyone.",
		OTPHTML: "<div style=\"font-family: Helvetica, sans-serif; color: #000000;\">" +
			"<h1>{app} Password Reset</h1>" +
			"<p>Dear User,</p>" +
			"<p>Your OTP is:</p>" +
			"<h2 style=\"color:#DC2626;\">{code}</h2>" +
			"<p>This OTP is valid for <b>{minutes} minutes</b>.</p>" +
			"<p>Do not share it with anyone.</p>" +
			"</div>",
	},
	"hi": {
		OTPSubject: "आपका पासवर्ड रीसेट OTP",
		OTPText: "{app} पासवर्ड रीसेट\n\nआपका OTP है: {code}\n" +
			"यह OTP {minutes} मिनट तक वैध है।\nइसे किसी के साथ साझा न करें।",
		OTPHTML: "<div style=\"font-family: Helvetica, sans-serif; color: #000000;\">" +
			"<h1>{app} पासवर्ड रीसेट</h1>" +
			"<p>आपका OTP है:</p>" +
			"<h2 style=\"color:#DC2626;\">{code}</h2>" +
			"<p>यह OTP <b>{minutes} मिनट</b> तक वैध है।</p>" +
			"<p>इसे किसी के साथ साझा न करें।</p>" +
			"</div>",
	},
}

func stringsFor(locale string) emailStrings {
	if s, ok := emailTranslations[locale]; ok {
		return s
	}
	return emailTranslations[DefaultLocale]
}

// OTPEmail renders the password-reset code email. The raw code appears
// only in the rendered content, never anywhere persistent.
func OTPEmail(locale, appName, code string, minutes int) EmailContent {
	s := stringsFor(locale)
	repl := strings.NewReplacer(
		"{app}", appName,
		"{code}", code,
		"{minutes}", strconv.Itoa(minutes),
	)
	return EmailContent{
		Subject: s.OTPSubject,
		Text:    repl.Replace(s.OTPText),
		HTML:    repl.Replace(s.OTPHTML),
	}
}
