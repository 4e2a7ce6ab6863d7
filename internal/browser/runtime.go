// File: internal/browser/runtime.go
package browser

// focusBinding is the CDP binding the runtime reports focus changes through.
const focusBinding = "__sfFocus"

// runtimeScript is injected into every document. It gives elements stable
// numeric handles (weakly held, so the page can still collect them) and
// exposes the reads and writes the Page needs as window.__sf. Mutators
// return {ok, value} or {ok: false, error}; "detached" marks a node that is
// gone.
const runtimeScript = `(() => {
  if (window.__sf) return;
  const ids = new WeakMap();
  const refs = new Map();
  let next = 1;

  const idOf = (el) => {
    if (!(el instanceof Element)) return 0;
    let id = ids.get(el);
    if (!id) {
      id = next++;
      ids.set(el, id);
      refs.set(id, new WeakRef(el));
    }
    return id;
  };
  const get = (id) => {
    const ref = refs.get(id);
    const el = ref ? ref.deref() : undefined;
    if (!el) refs.delete(id);
    return el || null;
  };
  const need = (id) => {
    const el = get(id);
    if (!el || !el.isConnected) throw new Error('detached');
    return el;
  };
  const guard = (fn) => {
    try {
      const v = fn();
      return { ok: true, value: v === undefined ? null : v };
    } catch (e) {
      return { ok: false, error: String((e && e.message) || e) };
    }
  };

  const selectable = (el) => {
    if (el instanceof HTMLTextAreaElement) return true;
    if (!(el instanceof HTMLInputElement)) return false;
    return ['text', 'search', 'url', 'tel', 'password'].includes(el.type);
  };
  const hasValue = (el) => el instanceof HTMLInputElement || el instanceof HTMLTextAreaElement;

  // Frameworks that track the value property are bypassed by the prototype
  // setter, so they see the change when the input event arrives.
  const setNativeValue = (el, v) => {
    const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
    const desc = Object.getOwnPropertyDescriptor(proto, 'value');
    if (desc && desc.set) desc.set.call(el, v);
    else el.value = v;
  };

  const xpath = (el) => {
    if (el.id && !el.id.includes('"') && document.querySelectorAll('#' + CSS.escape(el.id)).length === 1) {
      return '//' + el.localName + '[@id="' + el.id + '"]';
    }
    const parts = [];
    for (let n = el; n && n.nodeType === Node.ELEMENT_NODE; n = n.parentElement) {
      let i = 1;
      for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
        if (s.localName === n.localName) i++;
      }
      parts.unshift(n.localName + '[' + i + ']');
    }
    return '/' + parts.join('/');
  };

  const build = (n) => {
    if (!n.tag) return document.createTextNode(n.text || '');
    const el = document.createElement(n.tag);
    for (const [k, v] of Object.entries(n.attrs || {})) el.setAttribute(k, v);
    if (n.text) el.appendChild(document.createTextNode(n.text));
    for (const c of n.children || []) el.appendChild(build(c));
    return el;
  };

  const makeEvent = (s) => {
    const init = { bubbles: s.bubbles, cancelable: s.cancelable, composed: true };
    switch (s.kind) {
      case 'InputEvent':
        return new InputEvent(s.type, Object.assign(init, { inputType: s.inputType || '', data: s.data || null }));
      case 'KeyboardEvent':
        return new KeyboardEvent(s.type, init);
      case 'FocusEvent':
        return new FocusEvent(s.type, init);
      default:
        return new Event(s.type, init);
    }
  };

  window.__sf = {
    query(sel) {
      const out = [];
      let list;
      try { list = document.querySelectorAll(sel); } catch (e) { return out; }
      for (const el of list) out.push(idOf(el));
      return out;
    },
    active() {
      const a = document.activeElement;
      if (!a || a === document.body || a === document.documentElement) return 0;
      return idOf(a);
    },
    viewport() {
      return { width: window.innerWidth, height: window.innerHeight };
    },
    tag(id) { const el = get(id); return el ? el.localName : ''; },
    attr(id, name) { const el = get(id); return el ? el.getAttribute(name) : null; },
    matches(id, sel) { const el = get(id); try { return !!el && el.matches(sel); } catch (e) { return false; } },
    closest(id, sel) { const el = get(id); try { return el ? idOf(el.closest(sel)) : 0; } catch (e) { return 0; } },
    connected(id) { const el = get(id); return !!el && el.isConnected; },
    editable(id) { const el = get(id); return !!el && el.isContentEditable; },
    rect(id) {
      const el = get(id);
      if (!el) return { x: 0, y: 0, width: 0, height: 0 };
      const r = el.getBoundingClientRect();
      return { x: r.x, y: r.y, width: r.width, height: r.height };
    },
    style(id) {
      const el = get(id);
      if (!el) return { display: 'none', visibility: 'hidden', opacity: 0 };
      const cs = getComputedStyle(el);
      return { display: cs.display, visibility: cs.visibility, opacity: parseFloat(cs.opacity) };
    },
    value(id) {
      const el = get(id);
      return el && hasValue(el) ? { ok: true, value: el.value } : { ok: false, value: '' };
    },
    text(id) { const el = get(id); return el ? el.textContent || '' : ''; },
    locator(id) { const el = get(id); return el ? xpath(el) : ''; },
    selection(id) {
      const el = get(id);
      if (!el || !selectable(el)) return { ok: false, start: 0, end: 0 };
      return { ok: true, start: el.selectionStart || 0, end: el.selectionEnd || 0 };
    },

    setValue(id, v) {
      return guard(() => {
        const el = need(id);
        if (!hasValue(el)) throw new Error('no value property');
        setNativeValue(el, v);
      });
    },
    setText(id, text) { return guard(() => { need(id).textContent = text; }); },
    setSelection(id, start, end) {
      return guard(() => {
        const el = need(id);
        if (!selectable(el)) throw new Error('no selection API');
        el.setSelectionRange(start, end);
      });
    },
    focus(id) { return guard(() => { need(id).focus(); }); },
    selectAll(id) {
      return guard(() => {
        const el = need(id);
        const range = document.createRange();
        range.selectNodeContents(el);
        const sel = window.getSelection();
        sel.removeAllRanges();
        sel.addRange(range);
      });
    },
    execInsert(id, text) {
      return guard(() => {
        need(id);
        return document.execCommand('insertText', false, text) === true;
      });
    },
    replaceChildren(id, nodes) { return guard(() => { need(id).replaceChildren(...nodes.map(build)); }); },
    dispatch(id, spec) { return guard(() => { need(id).dispatchEvent(makeEvent(spec)); }); },
  };

  document.addEventListener('focusin', (e) => {
    const id = idOf(e.target);
    if (id && typeof window.` + focusBinding + ` === 'function') window.` + focusBinding + `(String(id));
  }, { capture: true, passive: true });
})();`
