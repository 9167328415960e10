package services

const passwordResetEmailHTML = `<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #222;">
    <h2>Reset your password</h2>
    <p>Hi %s,</p>
    <p>We received a request to reset your KodiPay password. The link below is valid for one hour and can be used once.</p>
    <p><a href="%s" style="background:#0a7c45;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none;">Reset password</a></p>
    <p>If you did not ask for this you can ignore this email.</p>
  </body>
</html>`

const billOverdueEmailHTML = `<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #222;">
    <h2>Your bill is overdue</h2>
    <p>%s</p>
    <p>Outstanding balance: <strong>%s</strong></p>
    <p>Due date: %s</p>
  </body>
</html>`
