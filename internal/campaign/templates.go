package campaign

// Built-in message templates. Placeholders: {customer_name},
// {agent_name}, {company_name}.

const emailRetentionTemplate = `Hi {customer_name},

We noticed you might be considering leaving us, and we'd love to understand how we can better serve you.

Your feedback is valuable to us! We're committed to providing you with the best possible experience.

Please take a moment to let us know:
- What we can do better
- Any concerns you might have
- How we can improve your experience

We're here to help and want to make things right.

Best regards,
The Customer Success Team`

// EmailWinBackTemplate targets customers who have gone quiet.
const EmailWinBackTemplate = `Hi {customer_name},

We miss you! It's been a while since we've seen you, and we have some exciting updates and special offers just for you.

Here's what's new:
- New features you'll love
- Special discount just for you
- Improved customer support

We'd love to have you back!

Best regards,
The Team`

// EmailNurturingTemplate is for healthy accounts worth keeping engaged.
const EmailNurturingTemplate = `Hi {customer_name},

Thank you for being a valued customer! Here are some tips to get the most out of our service:

- Pro tip: Use feature X to save time
- New tutorial: How to maximize your results
- Community: Join our user group

We're here to help you succeed!

Best regards,
The Customer Success Team`

const smsDefaultTemplate = `Hi {customer_name}! We miss you. Special offer just for you: 20% off. Reply STOP to opt out.`

const voiceDefaultScript = `Hello {customer_name}, this is {agent_name} from {company_name}.

I'm calling because we noticed you might be considering leaving us, and we'd love to understand how we can better serve you.

Your feedback is valuable to us! We're committed to providing you with the best possible experience.

Do you have a few minutes to discuss:
- What we can do better
- Any concerns you might have
- How we can improve your experience

We're here to help and want to make things right.`
