// internal/driver/cdpdriver/scripts.go
package cdpdriver

import "strings"

// Element functions run through Runtime.callFunctionOn with `this` bound to the node.
// Each one throws staleMarker if the node has left the document.

const guard = `if (!this.isConnected) { throw new Error('` + staleMarker + `'); }`

var (
	fnConnected = `function() { return this.isConnected; }`

	fnAttribute = withGuard(`function(name) {
	GUARD
	if (name === 'value' && 'value' in this) {
		return {v: String(this.value), ok: true};
	}
	const v = this.getAttribute(name);
	return v === null ? {v: '', ok: false} : {v: v, ok: true};
}`)

	fnText = withGuard(`function() {
	GUARD
	return (this.innerText || this.textContent || '').replace(/\s+/g, ' ').trim();
}`)

	fnDisplayed = withGuard(`function() {
	GUARD
	const s = window.getComputedStyle(this);
	if (s.display === 'none' || s.visibility === 'hidden') {
		return false;
	}
	return !!(this.offsetWidth || this.offsetHeight || this.getClientRects().length);
}`)

	fnEnabled = withGuard(`function() {
	GUARD
	return !this.disabled;
}`)

	fnChecked = withGuard(`function() {
	GUARD
	return !!this.checked;
}`)

	fnClick = withGuard(`function() {
	GUARD
	this.scrollIntoView({block: 'center', inline: 'center'});
	this.click();
	return true;
}`)

	// The native setter is used so frameworks tracking the value property see the write.
	fnWrite = withGuard(`function(text, clearFirst) {
	GUARD
	this.focus();
	const next = clearFirst ? text : String(this.value || '') + text;
	const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(this), 'value');
	if (desc && desc.set) {
		desc.set.call(this, next);
	} else {
		this.value = next;
	}
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	this.blur();
	return true;
}`)

	fnToggle = withGuard(`function() {
	GUARD
	this.click();
	return !!this.checked;
}`)

	fnBlur = withGuard(`function() {
	GUARD
	this.focus();
	this.blur();
	return true;
}`)

	fnSelect = withGuard(`function(by, value) {
	GUARD
	const opts = Array.from(this.options || []);
	let idx = -1;
	if (by === 'index') {
		idx = parseInt(value, 10);
		if (isNaN(idx) || idx < 0 || idx >= opts.length) {
			idx = -1;
		}
	} else if (by === 'text') {
		idx = opts.findIndex(o => o.text.trim() === value);
	} else if (by === 'value') {
		idx = opts.findIndex(o => o.value === value);
	} else if (by === 'pattern') {
		const re = new RegExp('^(?:' + value + ')$');
		idx = opts.findIndex(o => re.test(o.text.trim()));
	}
	if (idx < 0) {
		return false;
	}
	this.selectedIndex = idx;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
}`)

	fnSelection = withGuard(`function() {
	GUARD
	const opts = Array.from(this.options || []);
	const i = this.selectedIndex;
	const o = i >= 0 ? opts[i] : null;
	return {
		text: o ? o.text.trim() : '',
		value: o ? o.value : '',
		index: i,
		enabled: !this.disabled,
		count: opts.length,
	};
}`)
)

func withGuard(fn string) string {
	return strings.Replace(fn, "GUARD", guard, 1)
}
